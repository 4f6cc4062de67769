package middleware

// identity.go holds the context keys written by JWTAuth and accessors used
// by handlers and the rate limiter.

import "github.com/labstack/echo/v4"

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated user's ID, or false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role or "".
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}
