package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
)

// Health returns a liveness handler for load balancers.  It reports the
// number of registered events alongside "ok".
func Health(reg *booking.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "events": len(reg.Events())})
	}
}
