package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates an HS256 Bearer token
// and stores the requester reference (the "sub" claim) and the "role" claim
// in the request context.  Handlers read them back with Requester and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
			}

			ref := subject(claims)
			if ref == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no subject", "code": "unauthorized"})
			}
			c.Set(requesterKey, ref)
			if role, ok := claims["role"].(string); ok {
				c.Set(roleKey, strings.ToUpper(role))
			}
			return next(c)
		}
	}
}
