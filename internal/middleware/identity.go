package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID extracts the authenticated user ID set by JWTAuth.
// The sub claim round-trips through JSON, so it arrives as float64
// when the token is parsed; numeric context values set directly by
// tests are accepted as well. Returns 0 when unauthenticated.
func currentUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case uint64:
		return v
	case int64:
		if v > 0 {
			return uint64(v)
		}
	case int:
		if v > 0 {
			return uint64(v)
		}
	case float64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// CurrentUserID is the exported form used by handlers.
func CurrentUserID(c echo.Context) uint64 { return currentUserID(c) }

// CurrentRole returns the authenticated role, or "" when absent.
func CurrentRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
