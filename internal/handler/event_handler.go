package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// EventHandler registers events and serves their seat maps and prices.
type EventHandler struct {
	Registry *booking.Registry // per-event coordinators
	Log      *logger.Logger
}

// NewEventHandler panics on a nil registry.
func NewEventHandler(reg *booking.Registry, log *logger.Logger) *EventHandler {
	if reg == nil {
		panic("nil registry passed to NewEventHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventHandler{Registry: reg, Log: log}
}

// RegisterEvent handles POST /v1/events.  It builds the seat map from a
// row layout and a tier price table and initializes its inventory.
func (h *EventHandler) RegisterEvent(c echo.Context) error {
	var req registerEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}

	prices := make(model.TierPrices, len(req.Prices))
	for name, cents := range req.Prices {
		tier, err := model.ParseTier(name)
		if err != nil {
			return writeError(c, h.Log, errBadRequest(err.Error()))
		}
		if cents < 0 {
			return writeError(c, h.Log, errBadRequest("price of "+name+" is negative"))
		}
		prices[tier] = model.Cents(cents)
	}
	rows := make([]model.RowLayout, len(req.Rows))
	for i, r := range req.Rows {
		tier, err := model.ParseTier(r.Tier)
		if err != nil {
			return writeError(c, h.Log, errBadRequest(err.Error()))
		}
		rows[i] = model.RowLayout{Label: strings.ToUpper(strings.TrimSpace(r.Label)), Seats: r.Seats, Tier: tier}
	}
	seatMap, err := model.BuildSeatMap(req.EventID, rows, prices)
	if err != nil {
		return writeError(c, h.Log, errBadRequest(err.Error()))
	}

	if _, err := h.Registry.Register(c.Request().Context(), seatMap); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"event_id": seatMap.EventID(), "seats": seatMap.Len()})
}

// Seats handles GET /v1/events/:id/seats.
func (h *EventHandler) Seats(c echo.Context) error {
	coord, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	snap, err := coord.Snapshot()
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newSeatsResponse(snap))
}

// Price handles POST /v1/events/:id/price, a preview that does not hold
// anything.
func (h *EventHandler) Price(c echo.Context) error {
	coord, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ids, err := selection(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	q, err := coord.Quote(ids)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, quoteResponse{
		SeatIDs:    model.SeatIDStrings(ids),
		TotalCents: int64(q.TotalCents),
		Lines:      q.Lines,
	})
}

// selection binds and parses a seat_ids body.  Malformed ids are an
// invalid selection.
func selection(c echo.Context) ([]model.SeatID, error) {
	var req seatSelectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return nil, err
	}
	ids, err := model.ParseSeatIDs(req.SeatIDs)
	if err != nil {
		return nil, &model.InvalidSelectionError{Reason: err.Error()}
	}
	return ids, nil
}
