package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/handler"
	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
)

// RegisterEvents registers the public seat map routes and the owner-only
// event registration.  The seat snapshot is served through the response
// cache; the price preview is rate limited.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, d Deps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	e.GET("/v1/events/:id/seats", h.Seats, limit, middleware.NewRedisCache(d.Cache, d.Redis))
	e.POST("/v1/events/:id/price", h.Price, limit)

	e.POST("/v1/events", h.RegisterEvent,
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleOwner),
	)
}
