// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/config"
	"github.com/iliyamo/seat-reservation-engine/internal/handler"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
)

// Deps is everything the routes need.  Redis may be nil, which turns off
// rate limiting and response caching.
type Deps struct {
	Registry  *booking.Registry
	Log       *logger.Logger
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
}

// RegisterRoutes registers the health check and every /v1 route.
func RegisterRoutes(e *echo.Echo, d Deps) {
	if e.Validator == nil {
		e.Validator = handler.NewValidator()
	}
	e.GET("/healthz", handler.Health(d.Registry))

	RegisterEvents(e, handler.NewEventHandler(d.Registry, d.Log), d)
	RegisterHolds(e, handler.NewHoldHandler(d.Registry, d.Log), d)
}
