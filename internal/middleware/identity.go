package middleware

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	requesterKey = "requester"
	roleKey      = "role"
)

// Requester returns the authenticated requester reference, or "" when the
// route is not behind JWTAuth.
func Requester(c echo.Context) string {
	s, _ := c.Get(requesterKey).(string)
	return s
}

// Role returns the authenticated role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(roleKey).(string)
	return s
}

// subject reads "sub" as a string; numeric subjects from older tokens are
// formatted without a fraction.
func subject(claims jwt.MapClaims) string {
	switch v := claims["sub"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// requesterOrAnon is used in rate limit and cache keys.
func requesterOrAnon(c echo.Context) string {
	if r := Requester(c); r != "" {
		return r
	}
	return "anon"
}
