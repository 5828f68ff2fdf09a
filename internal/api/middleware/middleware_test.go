package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/trade-ledger/internal/logger"
)

func TestOwner(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		fallback   string
		wantStatus int
		wantOwner  string
	}{
		{"header wins", "shop-2", "default", http.StatusOK, "shop-2"},
		{"default owner", "", "default", http.StatusOK, "default"},
		{"blank header uses default", "   ", "default", http.StatusOK, "default"},
		{"no owner at all", "", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Owner(logger.NewWithWriter(&bytes.Buffer{}), tt.fallback)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = OwnerFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
			if tt.header != "" {
				req.Header.Set(OwnerHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got != tt.wantOwner {
				t.Errorf("owner = %q, want %q", got, tt.wantOwner)
			}
		})
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/transactions":              "/api/transactions",
		"/api/transactions/t-1":          "/api/transactions/{id}",
		"/api/transactions/t-1/payments": "/api/transactions/{id}/payments",
		"/api/contacts/c-9/":             "/api/contacts/{id}",
		"/health":                        "/health",
		"/metrics":                       "/metrics",
		"/other/deep/path":               "/other/deep/path",
	}
	for in, want := range tests {
		if got := RouteLabel(in); got != want {
			t.Errorf("RouteLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	h := Recovery(logger.NewWithWriter(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(logs.String(), "Panic recovered") {
		t.Errorf("panic not logged: %s", logs.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/contacts", nil))

	if rec.Code != http.StatusNoContent || called {
		t.Errorf("preflight status = %d, handler called = %v", rec.Code, called)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), OwnerHeader) {
		t.Errorf("allow headers = %q, missing %s", rec.Header().Get("Access-Control-Allow-Headers"), OwnerHeader)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc" || rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("request id = %q, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc" {
		t.Errorf("generated request id = %q", seen)
	}
}
