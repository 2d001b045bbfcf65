package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_Explicit(t *testing.T) {
	p := FromContext(contextWithQuery("page=3&limit=25"))
	if p.Page != 3 || p.Limit != 25 {
		t.Errorf("unexpected params: %+v", p)
	}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestFromContext_Caps(t *testing.T) {
	p := FromContext(contextWithQuery("page=-1&limit=9999"))
	if p.Page != 1 {
		t.Errorf("expected page clamped to 1, got %d", p.Page)
	}
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestPages(t *testing.T) {
	p := Params{Page: 1, Limit: 10}
	cases := []struct {
		total, want int
	}{
		{0, 0},
		{1, 1},
		{10, 1},
		{11, 2},
		{100, 10},
	}
	for _, tc := range cases {
		if got := p.Pages(tc.total); got != tc.want {
			t.Errorf("Pages(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}

func TestNewList_Envelope(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	resp := NewList("patients retrieved", []string{"a"}, 35, p)
	if resp.Total == nil || *resp.Total != 35 {
		t.Error("expected total echoed back")
	}
	if resp.Page == nil || *resp.Page != 2 {
		t.Error("expected page echoed back")
	}
	if resp.Pages == nil || *resp.Pages != 4 {
		t.Errorf("expected 4 pages, got %v", resp.Pages)
	}
}
