package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/applications"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("")
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor("?limit=50&offset=10")
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := paramsFor("?limit=25&page=3")
	if p.Offset != 50 {
		t.Errorf("expected offset 50 for page 3, got %d", p.Offset)
	}
	if p := paramsFor("?page=3&offset=5"); p.Offset != 5 {
		t.Errorf("explicit offset should win over page, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	if p := paramsFor("?limit=500"); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	if p := paramsFor("?offset=-5"); p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestSQL(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	if got := p.SQL(); got != "LIMIT 20 OFFSET 40" {
		t.Errorf("unexpected SQL %q", got)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 45, 20, 20)
	if !resp.HasMore {
		t.Error("expected HasMore")
	}
	if resp.NextOffset == nil || *resp.NextOffset != 40 {
		t.Errorf("expected next offset 40, got %v", resp.NextOffset)
	}

	last := NewResponse([]string{"a"}, 45, 20, 40)
	if last.HasMore || last.NextOffset != nil {
		t.Error("last page should not report more results")
	}
}
