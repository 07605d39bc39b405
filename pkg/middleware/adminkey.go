package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminKeyMiddleware guards the elevated-privilege surface with a shared
// bearer key.
type AdminKeyMiddleware struct {
	key string
}

// NewAdminKeyMiddleware creates the middleware. The key must be non-empty;
// configuration validation enforces that before the server starts.
func NewAdminKeyMiddleware(key string) *AdminKeyMiddleware {
	return &AdminKeyMiddleware{key: key}
}

// Handler wraps an HTTP handler with the admin-key check.
func (m *AdminKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(m.key)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
