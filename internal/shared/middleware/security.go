package middleware

import (
	"net"
	"net/http"
	"strings"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders marks every response as non-cacheable and non-sniffable.
// Responses carry account data, so intermediaries must not store them. When
// hsts is set, browsers are also told to use HTTPS only.
func SecurityHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", "no-store")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			if hsts {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPSRedirect answers plain-HTTP requests with a permanent redirect to the
// same path over HTTPS. Hosts outside allowedHosts get 400 so a forged Host
// header cannot turn the server into an open redirect.
func HTTPSRedirect(allowedHosts []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}
		if !IsHostAllowed(host, allowedHosts) {
			http.Error(w, "invalid host", http.StatusBadRequest)
			return
		}

		target := "https://" + bracketIPv6(hostname(host)) + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// IsHostAllowed reports whether host names one of allowedHosts. Ports are
// ignored on both sides. An empty list allows every host.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}

	name := hostname(host)
	if name == "" {
		return false
	}
	for _, allowed := range allowedHosts {
		if hostname(allowed) == name {
			return true
		}
	}
	return false
}

// hostname lowercases s and strips any port and IPv6 brackets.
func hostname(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
}

func bracketIPv6(h string) string {
	if strings.Contains(h, ":") {
		return "[" + h + "]"
	}
	return h
}
