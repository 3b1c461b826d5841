package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/handler"
	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
)

// RegisterHolds registers the hold lifecycle under /v1/events/:id/holds.
// Every route needs a valid token; creating a hold and confirming it also
// pass through the stricter hold bucket.
func RegisterHolds(e *echo.Echo, h *handler.HoldHandler, d Deps) {
	g := e.Group("/v1/events/:id/holds",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleOwner),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	strict := middleware.NewHoldBucket(d.RateLimit, d.Redis)

	g.POST("", h.BeginHold, strict)
	g.GET("/:hold_id", h.GetHold)
	g.POST("/:hold_id/extend", h.Extend)
	g.POST("/:hold_id/confirm", h.Confirm, strict)
	g.DELETE("/:hold_id", h.Cancel)
}
