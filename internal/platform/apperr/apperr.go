// Package apperr defines the error kinds shared by the ordering services and
// the HTTP mapping used by every handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrDealerNotFound  = errors.New("dealer not found")
	ErrValidation      = errors.New("validation failed")
	ErrPersistence     = errors.New("persistence failed")
	ErrNotFound        = errors.New("not found")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Missing returns a ValidationError for the given fields, or nil when none are given.
func Missing(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// HTTPError converts a service error into an echo HTTP error.
func HTTPError(err error) *echo.HTTPError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDealerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "dealer not found")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDataUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "catalog data is unavailable, try again later")
	case errors.Is(err, ErrPersistence):
		return echo.NewHTTPError(http.StatusInternalServerError, "changes could not be saved, please retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
