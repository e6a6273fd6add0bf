package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Require gates a route behind one resource/action pair. Checks are
// fail-closed: a request without a principal, or whose principal lacks
// the action, gets 403.
func Require(resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := GetPrincipal(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
			}
			if !principal.Can(resource, action) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
