package catalog

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/blobstore"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	store := blobstore.NewInMemoryBlobStore("/api/v1/uploads")
	return NewHandler(f.svc, store, zerolog.Nop(), nil), f, echo.New()
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectCode(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("err = %v, want HTTP %d", err, code)
	}
	if he.Code != code {
		t.Fatalf("status = %d, want %d (%v)", he.Code, code, he.Message)
	}
}

func TestHandler_CreateGroupAndTest(t *testing.T) {
	h, _, e := newTestHandler()

	c, rec := jsonContext(e, http.MethodPost, `{"title":"SEROLOJİ"}`)
	if err := h.CreateGroup(c); err != nil {
		t.Fatal(err)
	}
	var g TestGroup
	json.Unmarshal(rec.Body.Bytes(), &g)

	c, rec = jsonContext(e, http.MethodPost, `{"groupId":"`+g.ID.String()+`","name":"CRP","basePrice":200,"costPrice":60}`)
	if err := h.CreateTest(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var tt Test
	json.Unmarshal(rec.Body.Bytes(), &tt)
	if tt.Category != "SEROLOJİ" || tt.CostPrice != 60 || tt.Order == nil || *tt.Order != 0 {
		t.Errorf("test = %+v", tt)
	}

	c, _ = jsonContext(e, http.MethodPost, `{"groupId":"`+g.ID.String()+`"}`)
	expectCode(t, h.CreateTest(c), http.StatusUnprocessableEntity)
}

func TestHandler_GetCatalog(t *testing.T) {
	h, f, e := newTestHandler()
	g := f.addGroup("g", intPtr(0))
	a := f.addTest(g, "a", 100, intPtr(0))
	dealer := uuid.New()
	f.prices.prices[dealer] = map[uuid.UUID]int64{a.ID: 70}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/catalog?dealerId="+dealer.String(), nil), rec)
	if err := h.GetCatalog(c); err != nil {
		t.Fatal(err)
	}
	var cat struct {
		Groups []struct {
			Tests []struct {
				Price     int64 `json:"price"`
				BasePrice int64 `json:"basePrice"`
			} `json:"tests"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatal(err)
	}
	if got := cat.Groups[0].Tests[0]; got.Price != 70 || got.BasePrice != 100 {
		t.Errorf("test = %+v", got)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/catalog?dealerId=nope", nil), httptest.NewRecorder())
	expectCode(t, h.GetCatalog(c), http.StatusBadRequest)
}

func TestHandler_SetDealerPrices(t *testing.T) {
	h, f, e := newTestHandler()
	g := f.addGroup("g", intPtr(0))
	a := f.addTest(g, "a", 100, intPtr(0))
	dealer := uuid.New()

	body := `{"dealerId":"` + dealer.String() + `","prices":[{"testId":"` + a.ID.String() + `","price":65}]}`
	c, rec := jsonContext(e, http.MethodPut, body)
	if err := h.SetDealerPrices(c); err != nil {
		t.Fatal(err)
	}
	var prices []DealerPrice
	json.Unmarshal(rec.Body.Bytes(), &prices)
	if len(prices) != 1 || prices[0].Price != 65 {
		t.Errorf("prices = %+v", prices)
	}

	c, rec = jsonContext(e, http.MethodPut, `{"dealerId":"`+dealer.String()+`","prices":[{"testId":"`+a.ID.String()+`","price":null}]}`)
	if err := h.SetDealerPrices(c); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("after clearing: %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/dealer-prices", nil), httptest.NewRecorder())
	expectCode(t, h.GetDealerPrices(c), http.StatusUnprocessableEntity)
}

func TestHandler_UploadPackageImage(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.addPackage("p", nil, nil, intPtr(0))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", "panel.png")
	part.Write(pngHeader)
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.UploadPackageImage(c); err != nil {
		t.Fatal(err)
	}
	var obj blobstore.Object
	json.Unmarshal(rec.Body.Bytes(), &obj)
	if obj.URL == "" || f.packages.items[0].Image != obj.URL {
		t.Errorf("image = %q, object url = %q", f.packages.items[0].Image, obj.URL)
	}
	if obj.Purpose != blobstore.PurposePackageImage {
		t.Errorf("purpose = %q", obj.Purpose)
	}
}

func TestHandler_UploadPackageImage_RejectsText(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.addPackage("p", nil, nil, intPtr(0))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text, not an image"))
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	expectCode(t, h.UploadPackageImage(c), http.StatusUnsupportedMediaType)
	if f.packages.items[0].Image != "" {
		t.Error("image set after failed upload")
	}
}

func TestHandler_UploadPackageImage_UnknownPackage(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectCode(t, h.UploadPackageImage(c), http.StatusNotFound)
}

func TestHandler_DeleteGroupWithTests(t *testing.T) {
	h, f, e := newTestHandler()
	g := f.addGroup("g", intPtr(0))
	f.addTest(g, "a", 1, intPtr(0))
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(g.ID.String())
	expectCode(t, h.DeleteGroup(c), http.StatusBadRequest)
}
