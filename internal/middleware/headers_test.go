package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		preflight      bool
		wantStatus     int
		wantHeader     string
	}{
		{"no origins configured", nil, "https://example.com", false, http.StatusOK, ""},
		{"allowed origin", []string{"https://example.com"}, "https://example.com", false, http.StatusOK, "https://example.com"},
		{"disallowed preflight", []string{"https://example.com"}, "https://evil.com", true, http.StatusForbidden, ""},
		{"allowed preflight", []string{"https://example.com"}, "https://example.com", true, http.StatusNoContent, "https://example.com"},
		{"case insensitive", []string{"HTTPS://EXAMPLE.COM"}, "https://example.com", false, http.StatusOK, "https://example.com"},
		{"wildcard any", []string{"*"}, "http://localhost:3000", false, http.StatusOK, "http://localhost:3000"},
		{"wildcard subdomain", []string{"*.example.com"}, "https://api.example.com", false, http.StatusOK, "https://api.example.com"},
		{"wildcard rejects lookalike", []string{"*.example.com"}, "https://notexample.com", false, http.StatusOK, ""},
		{"wildcard rejects apex", []string{"*.example.com"}, "https://.example.com", false, http.StatusOK, ""},
		{"no origin header", []string{"https://example.com"}, "", false, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(DefaultCORSConfig(tt.allowedOrigins))(okHandler())

			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/v2/users", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORSPreflightHeaders(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://example.com"}))(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v2/users", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPut) {
		t.Errorf("Allow-Methods = %q, want PUT listed", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-API-Key") {
		t.Errorf("Allow-Headers = %q, want X-API-Key listed", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Max-Age = %q, want 86400", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Location") {
		t.Errorf("Expose-Headers = %q, want Location listed", got)
	}
}

func TestSecurity(t *testing.T) {
	tests := []struct {
		name     string
		dev      bool
		wantHSTS bool
	}{
		{"production sets HSTS", false, true},
		{"development skips HSTS", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Security(tt.dev)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control"} {
				if rec.Header().Get(h) == "" {
					t.Errorf("missing header %s", h)
				}
			}
			if got := rec.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			if IsBodyTooLarge(err) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := MaxBodySize(10)(readAll)

	t.Run("small body passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("declared length rejected early", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 100))))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
		var body errorBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != "PAYLOAD_TOO_LARGE" {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("streamed body cut off", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 100)))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})
}

func TestRecoverer(t *testing.T) {
	logger, buf := newTestLogger()
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if len(seen) != 36 || rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "req-123" {
			t.Errorf("request id = %q, want req-123", seen)
		}
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) != 36 {
			t.Errorf("oversized id should be replaced, got length %d", len(seen))
		}
	})
}
