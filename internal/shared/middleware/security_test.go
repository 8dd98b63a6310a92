package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsHostAllowed(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		allowed []string
		want    bool
	}{
		{name: "no list allows all", host: "anything.test", want: true},
		{name: "exact", host: "api.wealthdash.test", allowed: []string{"api.wealthdash.test"}, want: true},
		{name: "port ignored on request", host: "api.wealthdash.test:8443", allowed: []string{"api.wealthdash.test"}, want: true},
		{name: "port ignored on list", host: "localhost", allowed: []string{"localhost:3000"}, want: true},
		{name: "case and spaces", host: " API.Wealthdash.TEST ", allowed: []string{" api.wealthdash.test"}, want: true},
		{name: "ipv6 bracketed with port", host: "[::1]:8080", allowed: []string{"::1"}, want: true},
		{name: "ipv6 bare vs bracketed", host: "::1", allowed: []string{"[::1]:8080"}, want: true},
		{name: "second entry", host: "app.test", allowed: []string{"api.test", "app.test"}, want: true},
		{name: "subdomain is not parent", host: "evil.api.test", allowed: []string{"api.test"}, want: false},
		{name: "other ipv6", host: "[::2]:8080", allowed: []string{"[::1]:8080"}, want: false},
		{name: "empty host", host: "", allowed: []string{"api.test"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHostAllowed(tt.host, tt.allowed); got != tt.want {
				t.Errorf("IsHostAllowed(%q, %v) = %v, want %v", tt.host, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	for _, hsts := range []bool{false, true} {
		rec := httptest.NewRecorder()
		SecurityHeaders(hsts)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

		if got := rec.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q", got)
		}
		if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("X-Content-Type-Options = %q", got)
		}
		if got := rec.Header().Get("Strict-Transport-Security"); (got != "") != hsts {
			t.Errorf("hsts=%v: Strict-Transport-Security = %q", hsts, got)
		}
	}
}

func TestHTTPSRedirect(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		forwarded    string
		wantStatus   int
		wantLocation string
	}{
		{name: "allowed host", host: "api.test", wantStatus: http.StatusMovedPermanently, wantLocation: "https://api.test/api/items?x=1"},
		{name: "port dropped", host: "api.test:80", wantStatus: http.StatusMovedPermanently, wantLocation: "https://api.test/api/items?x=1"},
		{name: "forwarded host wins", host: "internal:80", forwarded: "api.test", wantStatus: http.StatusMovedPermanently, wantLocation: "https://api.test/api/items?x=1"},
		{name: "unknown host", host: "evil.test", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/items?x=1", nil)
			req.Host = tt.host
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Host", tt.forwarded)
			}
			rec := httptest.NewRecorder()

			HTTPSRedirect([]string{"api.test"}).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}
