// Package middleware provides HTTP middleware for the AutoFinance API.
package middleware

import (
	"net/http"

	"github.com/ashureev/autofinance/internal/identity"
)

// CORS returns middleware that handles CORS headers. The session header is
// both accepted and exposed so browser clients can carry the session without cookies.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if ok, explicit := matchOrigin(allowedOrigins, origin); ok {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+identity.SessionHeaderName)
				h.Set("Access-Control-Expose-Headers", identity.SessionHeaderName)
				h.Add("Vary", "Origin")
				// Credentials only for explicitly listed origins, never a wildcard echo.
				if explicit {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowed []string, origin string) (ok, explicit bool) {
	if origin == "" {
		return false, false
	}
	for _, o := range allowed {
		switch o {
		case origin:
			return true, true
		case "*":
			ok = true
		}
	}
	return ok, false
}
