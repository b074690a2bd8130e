package dealer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func TestHandler_CreateDealer(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/dealers", strings.NewReader(`{"name":"Acme","phone":"555"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateDealer(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var d Dealer
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if !d.IsActive || d.Phone != "555" {
		t.Errorf("got %+v, want active dealer with phone", d)
	}
}

func TestHandler_CreateDealer_MissingName(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/dealers", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateDealer(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v, want 422", err)
	}
}

func TestHandler_UpdateDealer_KeepsActiveWhenOmitted(t *testing.T) {
	h, svc, e := newTestHandler()
	d := seedDealer(t, svc, "Acme", true)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"name":"Acme Lab"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.UpdateDealer(c); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(c.Request().Context(), d.ID)
	if got.Name != "Acme Lab" || !got.IsActive {
		t.Errorf("got %+v", got)
	}
}

func TestHandler_GetDealer_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("0b6f0f4e-8e55-4c1b-b0c1-3a7f2b9d6e10")
	he, ok := h.GetDealer(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %v", he)
	}
}

func TestHandler_ListDealers_EmptyArray(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/dealers?active=true", nil), rec)
	if err := h.ListDealers(c); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s", rec.Body.String())
	}
}
