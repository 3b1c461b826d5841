package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// apiError is a response already decided by the handler.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func errBadRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, code: "invalid_request", msg: msg}
}

// writeError maps domain errors to HTTP responses.  The body is always
// {"error": message, "code": kind}; conflicts add the "unavailable" seat
// list.  Anything unrecognized is logged and answered with an opaque 500.
func writeError(c echo.Context, log *logger.Logger, err error) error {
	var (
		api         *apiError
		unavailable *model.SeatUnavailableError
		unknown     *model.UnknownSeatError
		payment     *model.PaymentFailedError
	)
	switch {
	case errors.As(err, &api):
		return c.JSON(api.status, echo.Map{"error": api.msg, "code": api.code})
	case errors.As(err, &unavailable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are not available",
			"code":        "seat_unavailable",
			"unavailable": model.SeatIDStrings(unavailable.Seats),
		})
	case errors.As(err, &unknown):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   err.Error(),
			"code":    "unknown_seat",
			"unknown": model.SeatIDStrings(unknown.Seats),
		})
	case errors.Is(err, model.ErrInvalidSelection):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "invalid_selection"})
	case errors.As(err, &payment):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": payment.Error(), "code": "payment_failed"})
	case errors.Is(err, model.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found", "code": "event_not_found"})
	case errors.Is(err, model.ErrHoldNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found", "code": "hold_not_found"})
	case errors.Is(err, model.ErrEventExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event already registered", "code": "event_exists"})
	case errors.Is(err, model.ErrHoldExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "hold expired", "code": "hold_expired"})
	case errors.Is(err, model.ErrHoldNotActive):
		return c.JSON(http.StatusConflict, echo.Map{"error": "hold is not active", "code": "hold_not_active"})
	case errors.Is(err, model.ErrCommitPending):
		c.Response().Header().Set("Retry-After", "5")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment captured, booking pending", "code": "commit_pending"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request cancelled", "code": "cancelled"})
	case errors.Is(err, booking.ErrInternal):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
	default:
		log.WithError(err).ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
	}
}
