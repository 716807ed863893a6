package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func params(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=50&offset=10", 50, 10},
		{"limit=5000", MaxLimit, 0},
		{"limit=-1&offset=-5", DefaultLimit, 0},
		{"limit=abc", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := params(t, tc.query)
		if p.Limit != tc.wantLimit || p.Offset != tc.wantOffset {
			t.Errorf("%q: got %+v, want limit=%d offset=%d", tc.query, p, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestNewResponseHasMore(t *testing.T) {
	if !NewResponse(nil, 100, 20, 0).HasMore {
		t.Error("expected more pages")
	}
	if NewResponse(nil, 15, 20, 0).HasMore {
		t.Error("expected last page")
	}
}
