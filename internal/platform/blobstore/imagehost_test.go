package blobstore

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func TestImageHostStore_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing api key")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("missing image part: %v", err)
		}
		if r.FormValue("name") != "pkg.png" {
			t.Errorf("name = %s", r.FormValue("name"))
		}
		w.Write([]byte(`{"success":true,"status":200,"data":{"id":"Xy12","url":"https://i.example/Xy12/pkg.png"}}`))
	}))
	defer srv.Close()

	store := NewImageHostStore(ImageHostConfig{Endpoint: srv.URL, APIKey: "secret"}, zerolog.Nop(), nil)
	obj, err := store.Upload(context.Background(), Object{FileName: "pkg.png", ContentType: "image/png", Purpose: PurposePackageImage}, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.ID != "Xy12" || obj.URL != "https://i.example/Xy12/pkg.png" {
		t.Errorf("unexpected object %+v", obj)
	}
}

func TestImageHostStore_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"status":400,"error":{"message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	store := NewImageHostStore(ImageHostConfig{Endpoint: srv.URL}, zerolog.Nop(), nil)
	_, err := store.Upload(context.Background(), Object{FileName: "a.png", ContentType: "image/png", Purpose: PurposePatientPhoto}, bytes.NewReader(pngBytes))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestImageHostStore_BreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := NewImageHostStore(ImageHostConfig{Endpoint: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute}, zerolog.Nop(), nil)
	upload := func() error {
		_, err := store.Upload(context.Background(), Object{FileName: "a.png", ContentType: "image/png", Purpose: PurposePatientPhoto}, bytes.NewReader(pngBytes))
		return err
	}

	for i := 0; i < 2; i++ {
		if err := upload(); err == nil {
			t.Fatalf("call %d: expected failure", i+1)
		}
	}
	if store.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", store.State())
	}
	if err := upload(); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("open breaker should not reach the host, calls = %d", calls)
	}
}

func TestImageHostStore_ValidationSkipsHost(t *testing.T) {
	store := NewImageHostStore(ImageHostConfig{Endpoint: "http://127.0.0.1:1"}, zerolog.Nop(), nil)
	_, err := store.Upload(context.Background(), Object{FileName: "a.txt", ContentType: "text/plain", Purpose: PurposePatientPhoto}, bytes.NewReader([]byte("x")))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
	if _, _, err := store.Download(context.Background(), "x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
