package model

import "time"

// HoldStatus is the lifecycle state of a hold.
type HoldStatus string

const (
	HoldActive HoldStatus = "ACTIVE"
	// HoldConfirming marks a hold whose payment is in flight.  Expiry and
	// cancellation leave it alone; only the confirming call finalizes it.
	HoldConfirming HoldStatus = "CONFIRMING"
	HoldExpired    HoldStatus = "EXPIRED"
	HoldCommitted  HoldStatus = "COMMITTED"
	HoldReleased   HoldStatus = "RELEASED"
)

// Terminal reports whether no further transition is possible.
func (s HoldStatus) Terminal() bool {
	switch s {
	case HoldExpired, HoldCommitted, HoldReleased:
		return true
	}
	return false
}

// Hold represents a temporary claim on a set of seats during the checkout
// process.  Holds prevent concurrent buyers from grabbing the same seats
// while a requester is paying.  The seat set is fixed at creation.
//
// Fields:
//
//	ID           – opaque hold token returned to the client.
//	EventID      – event the seats belong to.
//	RequesterRef – caller-supplied reference of the buyer.
//	SeatIDs      – seats claimed by the hold, sorted.
//	TotalCents   – price of the seats computed when the hold was created.
//	CreatedAt    – when the hold was created.
//	ExpiresAt    – when the hold stops being Active.
//	Status       – lifecycle state.
type Hold struct {
	ID           string     // holds.id
	EventID      string     // holds.event_id
	RequesterRef string     // holds.requester_ref
	SeatIDs      []SeatID   // holds.seat_ids
	TotalCents   Cents      // holds.total_cents
	CreatedAt    time.Time  // holds.created_at
	ExpiresAt    time.Time  // holds.expires_at
	Status       HoldStatus // holds.status
}

// Clone returns a deep copy so callers cannot alias the seat slice.
func (h Hold) Clone() Hold {
	ids := make([]SeatID, len(h.SeatIDs))
	copy(ids, h.SeatIDs)
	h.SeatIDs = ids
	return h
}

// PastExpiry reports whether now is at or after the hold's expiry.
func (h Hold) PastExpiry(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
