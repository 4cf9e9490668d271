package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type CORSMiddleware struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
	Skip             func(*http.Request) bool
}

func (m CORSMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if allowed := m.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			if m.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(orDefault(m.AllowedMethods, defaultMethods), ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(orDefault(m.AllowedHeaders, defaultHeaders), ", "))
			if m.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(int(m.MaxAge.Seconds())))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var (
	defaultMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	defaultHeaders = []string{"Content-Type", "X-Request-ID"}
)

// allowOrigin echoes the origin when credentials are allowed, since browsers
// reject a wildcard with credentials.
func (m CORSMiddleware) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	wildcard := "*"
	if m.AllowCredentials {
		wildcard = origin
	}
	if len(m.AllowedOrigins) == 0 {
		return wildcard
	}
	for _, allowed := range m.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		switch {
		case allowed == "*":
			return wildcard
		case allowed != "" && strings.EqualFold(allowed, origin):
			return origin
		}
	}
	return ""
}

func orDefault(values []string, fallback []string) []string {
	if len(values) > 0 {
		return values
	}
	return fallback
}
