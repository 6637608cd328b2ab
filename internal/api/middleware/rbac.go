package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// RequireRole gates a route on the role claim of the verified token. It must
// run after Authenticate: no identity is 401, a wrong role is 403.
// The claim is trusted as issued; the store is not consulted.
func RequireRole(role domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgNoToken).SetInternal(domain.ErrUnauthenticated)
			}
			if err := domain.RequireRole(id, role); err != nil {
				msg := MsgAccessDenied
				if domain.IsAdmin(role) {
					msg = MsgAdminsOnly
				}
				return echo.NewHTTPError(http.StatusForbidden, msg).SetInternal(err)
			}
			return next(c)
		}
	}
}

// RequireAdmin is RequireRole(domain.RoleAdmin).
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(domain.RoleAdmin)
}
