package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderServiceKey = "X-Service-Key"
	identityKey      = "identity"
)

// ServiceKey admits collaborator calls that present the shared service key.
func ServiceKey(key string, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" || !constantTimeEqual(c.Request().Header.Get(HeaderServiceKey), key) {
				log.Warn("Rejected service call", "path", c.Path(), "remote_addr", c.RealIP())
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid service key"})
			}
			return next(c)
		}
	}
}

// RequireRole verifies the bearer token and admits only the given role. The identity is
// available to handlers through IdentityFrom.
func RequireRole(verifier domain.IdentityVerifier, role domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "bearer token required"})
			}

			identity, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			if identity.Role != role {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "insufficient role"})
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	identity, ok := c.Get(identityKey).(*domain.Identity)
	return identity, ok
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
