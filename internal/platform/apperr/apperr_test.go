package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMissing(t *testing.T) {
	if Missing() != nil {
		t.Error("expected nil for no fields")
	}
	err := Missing("patientInfo.name", "selectedTests")
	if !errors.Is(err, ErrValidation) {
		t.Error("expected ErrValidation")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected *ValidationError")
	}
	if len(verr.Fields) != 2 {
		t.Errorf("fields = %v", verr.Fields)
	}
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{Missing("name"), http.StatusUnprocessableEntity},
		{fmt.Errorf("load: %w", ErrDealerNotFound), http.StatusNotFound},
		{fmt.Errorf("fetch: %w", ErrDataUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("save: %w", ErrPersistence), http.StatusInternalServerError},
		{fmt.Errorf("test: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("bad price: %w", ErrValidation), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPError(tt.err).Code; got != tt.code {
			t.Errorf("HTTPError(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}
