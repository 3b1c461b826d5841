// Package queue carries domain events over RabbitMQ: payload types, the
// publisher used by the booking flow and the consumer that keeps the
// booking log.
package queue

import (
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// Queue names.  Each event type has its own durable queue.
const (
	BookingConfirmedQueue = "booking.confirmed"
	HoldReleasedQueue     = "hold.released"
)

// BookingConfirmedEvent is published when a hold is committed into a
// booking.  It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	HoldID        string   `json:"hold_id"`
	EventID       string   `json:"event_id"`
	RequesterRef  string   `json:"requester"`
	SeatLabels    []string `json:"seats"`
	TotalCents    int64    `json:"total_cents"`
	PaymentRef    string   `json:"payment_ref"`
	TransactionID string   `json:"transaction_id"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// HoldReleasedEvent is published when a hold gives its seats back.
// Reason is one of cancelled, expired or payment_failed.
type HoldReleasedEvent struct {
	HoldID     string   `json:"hold_id"`
	EventID    string   `json:"event_id"`
	SeatLabels []string `json:"seats"`
	Reason     string   `json:"reason"`
	ReleasedAt string   `json:"released_at"`
}

// NewBookingConfirmed builds the event for b.
func NewBookingConfirmed(b model.Booking) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:     b.ID,
		HoldID:        b.HoldID,
		EventID:       b.EventID,
		RequesterRef:  b.RequesterRef,
		SeatLabels:    model.SeatIDStrings(b.SeatIDs),
		TotalCents:    int64(b.TotalCents),
		PaymentRef:    b.PaymentRef,
		TransactionID: b.TransactionID,
		ConfirmedAt:   b.ConfirmedAt.UTC().Format(time.RFC3339),
	}
}

// NewHoldReleased builds the event for a released hold.
func NewHoldReleased(h model.Hold, reason string, at time.Time) HoldReleasedEvent {
	return HoldReleasedEvent{
		HoldID:     h.ID,
		EventID:    h.EventID,
		SeatLabels: model.SeatIDStrings(h.SeatIDs),
		Reason:     reason,
		ReleasedAt: at.UTC().Format(time.RFC3339),
	}
}
