package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/upclick/task-exchange/internal/exchange"
)

// AccessGate rejects requests from users whose access window has
// expired. Admins bypass the gate so they can manage accounts even
// without an active window of their own. Must run after JWTAuth.
func AccessGate(eng *exchange.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role, _ := c.Get("role").(string); role == "ADMIN" {
				return next(c)
			}
			uid := currentUserID(c)
			if uid == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
			}
			win, err := eng.ResolveAccess(c.Request().Context(), uid)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
			}
			if !win.HasAccess {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":  "access expired",
					"reason": win.Reason,
				})
			}
			return next(c)
		}
	}
}
