package handler

import (
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/inventory"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/pricing"
)

// Request bodies.

type rowRequest struct {
	Label string `json:"label"`
	Seats int    `json:"seats" validate:"min=1,max=500"`
	Tier  string `json:"tier" validate:"required"`
}

type registerEventRequest struct {
	EventID string           `json:"event_id" validate:"required,max=64"`
	Rows    []rowRequest     `json:"rows" validate:"required,min=1,dive"`
	Prices  map[string]int64 `json:"prices" validate:"required,min=1"`
}

type seatSelectionRequest struct {
	SeatIDs []string `json:"seat_ids" validate:"required,min=1"`
}

type extendRequest struct {
	ExtendSeconds int `json:"extend_seconds" validate:"min=1,max=1800"`
}

type confirmRequest struct {
	PaymentRef string `json:"payment_ref" validate:"required,max=128"`
}

// Response bodies.

type seatResponse struct {
	SeatID     string `json:"seat_id"`
	Row        string `json:"row"`
	Number     uint32 `json:"number"`
	Tier       string `json:"tier"`
	PriceCents int64  `json:"price_cents"`
	State      string `json:"state"`
}

type seatsResponse struct {
	EventID   string         `json:"event_id"`
	Available int            `json:"available"`
	Held      int            `json:"held"`
	Sold      int            `json:"sold"`
	Seats     []seatResponse `json:"seats"`
}

func newSeatsResponse(s inventory.Snapshot) seatsResponse {
	out := seatsResponse{
		EventID:   s.EventID,
		Available: s.Available,
		Held:      s.Held,
		Sold:      s.Sold,
		Seats:     make([]seatResponse, len(s.Seats)),
	}
	for i, st := range s.Seats {
		out.Seats[i] = seatResponse{
			SeatID:     st.ID.String(),
			Row:        st.ID.Row,
			Number:     st.ID.Number,
			Tier:       string(st.Tier),
			PriceCents: int64(st.PriceCents),
			State:      string(st.State),
		}
	}
	return out
}

type quoteResponse struct {
	SeatIDs    []string           `json:"seat_ids"`
	TotalCents int64              `json:"total_cents"`
	Lines      []pricing.TierLine `json:"lines"`
}

type bookingResponse struct {
	BookingID     string    `json:"booking_id"`
	HoldID        string    `json:"hold_id"`
	EventID       string    `json:"event_id"`
	SeatIDs       []string  `json:"seat_ids"`
	TotalCents    int64     `json:"total_cents"`
	PaymentRef    string    `json:"payment_ref"`
	TransactionID string    `json:"transaction_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

func newBookingResponse(b model.Booking) *bookingResponse {
	return &bookingResponse{
		BookingID:     b.ID,
		HoldID:        b.HoldID,
		EventID:       b.EventID,
		SeatIDs:       model.SeatIDStrings(b.SeatIDs),
		TotalCents:    int64(b.TotalCents),
		PaymentRef:    b.PaymentRef,
		TransactionID: b.TransactionID,
		ConfirmedAt:   b.ConfirmedAt,
	}
}

type holdResponse struct {
	HoldID     string           `json:"hold_id"`
	EventID    string           `json:"event_id"`
	SeatIDs    []string         `json:"seat_ids"`
	TotalCents int64            `json:"total_cents"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	Booking    *bookingResponse `json:"booking,omitempty"`
}

func newHoldResponse(h model.Hold, b *model.Booking) holdResponse {
	out := holdResponse{
		HoldID:     h.ID,
		EventID:    h.EventID,
		SeatIDs:    model.SeatIDStrings(h.SeatIDs),
		TotalCents: int64(h.TotalCents),
		Status:     string(h.Status),
		CreatedAt:  h.CreatedAt,
		ExpiresAt:  h.ExpiresAt,
	}
	if b != nil {
		out.Booking = newBookingResponse(*b)
	}
	return out
}
