package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles carried in the token's "role" claim.
const (
	RoleOwner    = "OWNER"
	RoleCustomer = "CUSTOMER"
)

// RequireRole rejects requests whose role is not one of roles with 403.
// It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "forbidden"})
			}
			return next(c)
		}
	}
}
