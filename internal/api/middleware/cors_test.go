package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		pattern string
		origin  string
		want    bool
	}{
		{pattern: "*", origin: "https://shop.example", want: true},
		{pattern: "https://shop.example", origin: "https://shop.example", want: true},
		{pattern: "https://shop.example", origin: "https://evil.example", want: false},
		{pattern: "https://*.example.com", origin: "https://help.example.com", want: true},
		{pattern: "https://*.example.com", origin: "https://a.b.example.com", want: true},
		{pattern: "https://*.example.com", origin: "https://example.com", want: false},
		{pattern: "https://*.example.com", origin: "http://help.example.com", want: false},
		{pattern: "https://*.example.com", origin: "https://help.example.com.evil.io", want: false},
		{pattern: "https://*.example.com", origin: "", want: false},
	}

	for _, tt := range tests {
		if got := MatchOrigin(tt.pattern, tt.origin); got != tt.want {
			t.Errorf("MatchOrigin(%q, %q) = %v, want %v", tt.pattern, tt.origin, got, tt.want)
		}
	}
}

func TestCORSHeaders(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"https://*.example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "X-Visitor-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}
	called := false
	handler := CORS(cfg)(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/widget", nil)
	req.Header.Set("Origin", "https://help.example.com")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("expected the handler to run, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://help.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}
	if rec.Header().Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("unexpected expose headers %q", rec.Header().Get("Access-Control-Expose-Headers"))
	}
}

func TestCORSPreflight(t *testing.T) {
	cors := CORS(CORSConfig{
		AllowedOrigins: []string{"https://shop.example"},
		AllowedMethods: []string{"GET", "POST"},
	})
	handler := cors(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})

	allowed := httptest.NewRequest(http.MethodOptions, "/", nil)
	allowed.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	handler(rec, allowed)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Max-Age") == "" {
		t.Fatalf("unexpected preflight answer %d %v", rec.Code, rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Methods") != "GET, POST" {
		t.Fatalf("unexpected methods header %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}

	denied := httptest.NewRequest(http.MethodOptions, "/", nil)
	denied.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler(rec, denied)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"*"}})(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected a literal wildcard, got %q", got)
	}
}
