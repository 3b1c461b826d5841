package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// HoldHandler serves the hold lifecycle of authenticated requesters.  A
// hold is visible only to the requester that created it; other requesters
// get 404 as if it did not exist.
type HoldHandler struct {
	Registry *booking.Registry // per-event coordinators
	Log      *logger.Logger
}

// NewHoldHandler panics on a nil registry.
func NewHoldHandler(reg *booking.Registry, log *logger.Logger) *HoldHandler {
	if reg == nil {
		panic("nil registry passed to NewHoldHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HoldHandler{Registry: reg, Log: log}
}

// BeginHold handles POST /v1/events/:id/holds.  On a conflict the 409
// body lists the seats that were not available.
func (h *HoldHandler) BeginHold(c echo.Context) error {
	coord, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ids, err := selection(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	held, err := coord.BeginHold(c.Request().Context(), booking.BeginHoldInput{
		SeatIDs:      ids,
		RequesterRef: middleware.Requester(c),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, newHoldResponse(held, nil))
}

// GetHold handles GET /v1/events/:id/holds/:hold_id.  A committed hold
// carries its booking.
func (h *HoldHandler) GetHold(c echo.Context) error {
	_, held, b, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newHoldResponse(held, b))
}

// Extend handles POST /v1/events/:id/holds/:hold_id/extend.
func (h *HoldHandler) Extend(c echo.Context) error {
	var req extendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	coord, _, _, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	held, err := coord.Extend(c.Request().Context(), c.Param("hold_id"), time.Duration(req.ExtendSeconds)*time.Second)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newHoldResponse(held, nil))
}

// Confirm handles POST /v1/events/:id/holds/:hold_id/confirm.  A new
// booking answers 201; a replay of an earlier confirm answers 200 with the
// same booking.
func (h *HoldHandler) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	coord, _, _, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	b, replayed, err := coord.Confirm(c.Request().Context(), c.Param("hold_id"), req.PaymentRef)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	return c.JSON(status, newBookingResponse(b))
}

// Cancel handles DELETE /v1/events/:id/holds/:hold_id.  Cancelling a hold
// that is already finished answers 200 with cancelled=false.
func (h *HoldHandler) Cancel(c echo.Context) error {
	coord, _, _, err := h.owned(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ok, err := coord.Cancel(c.Request().Context(), c.Param("hold_id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hold_id": c.Param("hold_id"), "cancelled": ok})
}

// owned resolves the event and the hold and checks that the caller owns
// it.
func (h *HoldHandler) owned(c echo.Context) (*booking.Coordinator, model.Hold, *model.Booking, error) {
	coord, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		return nil, model.Hold{}, nil, err
	}
	held, b, err := coord.Lookup(c.Request().Context(), c.Param("hold_id"))
	if err != nil {
		return nil, model.Hold{}, nil, err
	}
	if held.RequesterRef != middleware.Requester(c) {
		return nil, model.Hold{}, nil, model.ErrHoldNotFound
	}
	return coord, held, b, nil
}
