package middleware

import (
	"net/http"
	"slices"

	"ticketing-realtime/pkg/logger"
)

// CORSWithLogging sets CORS headers for the allowed origins on plain net/http routers.
// "*" allows every origin.
func CORSWithLogging(allowedOrigins []string, log logger.Logger) func(http.Handler) http.Handler {
	allowAll := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				if !allowAll && !slices.Contains(allowedOrigins, origin) {
					log.Warn("CORS origin rejected", "path", r.URL.Path, "origin", origin)
					if r.Method == http.MethodOptions {
						w.WriteHeader(http.StatusForbidden)
						return
					}
					next.ServeHTTP(w, r)
					return
				}

				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, X-Service-Key, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				log.Debug("Handling CORS preflight", "path", r.URL.Path, "origin", origin)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireServiceKey is the net/http form of ServiceKey.
func RequireServiceKey(key string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || !constantTimeEqual(r.Header.Get(HeaderServiceKey), key) {
				log.Warn("Rejected service call", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid service key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
