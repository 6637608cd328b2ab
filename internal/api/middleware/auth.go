package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

// Client-facing messages for authentication and authorization failures.
const (
	MsgNoToken      = "No token, authorization denied"
	MsgInvalidToken = "Token is not valid"
	MsgAdminsOnly   = "Access denied: Admins only"
	MsgAccessDenied = "Access denied"
)

// IdentityKey is the echo.Context key holding the verified domain.Identity.
const IdentityKey = "identity"

// Authenticate verifies the session token and attaches the decoded identity
// to the request. The token may be sent raw or as "Bearer <token>".
// Missing and invalid tokens are both 401; expired tokens are reported as invalid.
func Authenticate(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				metrics.TokenVerificationsTotal.WithLabelValues("missing").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, MsgNoToken).SetInternal(domain.ErrUnauthenticated)
			}

			token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
			id, err := verifier.Verify(token)
			if err != nil {
				metrics.TokenVerificationsTotal.WithLabelValues("invalid").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidToken).SetInternal(err)
			}

			metrics.TokenVerificationsTotal.WithLabelValues("ok").Inc()
			c.Set(IdentityKey, id)
			c.SetRequest(c.Request().WithContext(domain.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// IdentityFrom returns the identity placed by Authenticate for this request.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	if id, ok := c.Get(IdentityKey).(domain.Identity); ok {
		return id, true
	}
	return domain.IdentityFrom(c.Request().Context())
}
