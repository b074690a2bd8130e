package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestInMemoryBlobStore_UploadDownloadDelete(t *testing.T) {
	store := NewInMemoryBlobStore("/api/v1/uploads")
	ctx := context.Background()

	obj, err := store.Upload(ctx, Object{FileName: "face.png", ContentType: "image/png", Purpose: PurposePatientPhoto}, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.ID == "" || obj.Hash == "" || obj.CreatedAt.IsZero() {
		t.Fatalf("incomplete object: %+v", obj)
	}
	if obj.URL != "/api/v1/uploads/"+obj.ID {
		t.Errorf("URL = %s", obj.URL)
	}
	if obj.Size != int64(len(pngBytes)) {
		t.Errorf("Size = %d", obj.Size)
	}

	rc, meta, err := store.Download(ctx, obj.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, pngBytes) || meta.FileName != "face.png" {
		t.Error("downloaded content does not match")
	}

	if err := store.Delete(ctx, obj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Download(ctx, obj.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, obj.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound on second delete, got %v", err)
	}
}

func TestUpload_Validation(t *testing.T) {
	store := NewInMemoryBlobStore("")
	tests := []struct {
		name    string
		obj     Object
		content io.Reader
		want    error
	}{
		{"missing name", Object{ContentType: "image/png", Purpose: PurposePatientPhoto}, bytes.NewReader(pngBytes), ErrMissingFileName},
		{"bad purpose", Object{FileName: "a.png", ContentType: "image/png", Purpose: "avatar"}, bytes.NewReader(pngBytes), ErrInvalidPurpose},
		{"pdf rejected", Object{FileName: "a.pdf", ContentType: "application/pdf", Purpose: PurposePackageImage}, strings.NewReader("%PDF"), ErrInvalidContentType},
		{"too large", Object{FileName: "a.jpg", ContentType: "image/jpeg", Purpose: PurposePackageImage}, io.LimitReader(zeroReader{}, MaxFileSize+1), ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Upload(context.Background(), tt.obj, tt.content); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if store.Len() != 0 {
		t.Errorf("rejected uploads should not be stored, have %d", store.Len())
	}
}

func TestUpload_NormalizesContentType(t *testing.T) {
	store := NewInMemoryBlobStore("")
	obj, err := store.Upload(context.Background(), Object{FileName: "a.jpg", ContentType: "Image/JPEG; charset=binary", Purpose: PurposeExtraPhoto}, strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %s", obj.ContentType)
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey(PurposePackageImage, "abc", "image/webp"); got != "package-image/abc.webp" {
		t.Errorf("objectKey = %s", got)
	}
}

func TestInMemoryBlobStore_ConcurrentUploads(t *testing.T) {
	store := NewInMemoryBlobStore("")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Upload(context.Background(), Object{FileName: "p.png", ContentType: "image/png", Purpose: PurposePatientPhoto}, bytes.NewReader(pngBytes))
			if err != nil {
				t.Errorf("upload: %v", err)
			}
		}()
	}
	wg.Wait()
	if store.Len() != 20 {
		t.Errorf("expected 20 objects, got %d", store.Len())
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
