package model

import "time"

// Booking is the durable record of a completed sale.  It is created only
// when a hold is committed after a successful payment and is never modified
// afterwards.
//
// Fields:
//
//	ID            – booking identifier.
//	HoldID        – hold the booking originated from (one booking per hold).
//	EventID       – event the seats belong to.
//	RequesterRef  – buyer reference copied from the hold.
//	SeatIDs       – seats sold.
//	TotalCents    – amount charged.
//	PaymentRef    – reference supplied by the buyer for the charge.
//	TransactionID – identifier returned by the payment gateway.
//	ConfirmedAt   – when the sale was committed.
type Booking struct {
	ID            string    // bookings.id
	HoldID        string    // bookings.hold_id
	EventID       string    // bookings.event_id
	RequesterRef  string    // bookings.requester_ref
	SeatIDs       []SeatID  // bookings.seat_ids
	TotalCents    Cents     // bookings.total_cents
	PaymentRef    string    // bookings.payment_ref
	TransactionID string    // bookings.transaction_id
	ConfirmedAt   time.Time // bookings.confirmed_at
}
