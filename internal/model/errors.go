package model

import (
	"errors"
	"strings"
)

// Sentinel errors shared across the engine.  Handlers translate them into
// HTTP responses with errors.Is; the structured types below carry the
// detail (which seats conflicted, why the payment failed) and match their
// sentinel.
var (
	ErrInvalidSelection   = errors.New("invalid seat selection")
	ErrSeatUnavailable    = errors.New("seat unavailable")
	ErrUnknownSeat        = errors.New("unknown seat")
	ErrHoldNotFound       = errors.New("hold not found")
	ErrHoldNotActive      = errors.New("hold not active")
	ErrHoldExpired        = errors.New("hold expired")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrEventNotFound      = errors.New("event not found")
	ErrEventExists        = errors.New("event already registered")
	ErrAlreadyInitialized = errors.New("inventory already initialized")
	ErrHoldMismatch       = errors.New("seat not held by hold")
	// ErrCommitPending means the payment was captured but the sale could
	// not be recorded yet; the seats stay reserved and the commit is
	// retried.
	ErrCommitPending = errors.New("payment captured, booking pending")
)

// InvalidSelectionError reports input that can only succeed after the
// caller changes it.
type InvalidSelectionError struct {
	Reason string
}

func (e *InvalidSelectionError) Error() string {
	return ErrInvalidSelection.Error() + ": " + e.Reason
}

func (e *InvalidSelectionError) Is(target error) bool { return target == ErrInvalidSelection }

// SeatUnavailableError names the requested seats that were not Available.
type SeatUnavailableError struct {
	Seats []SeatID
}

func (e *SeatUnavailableError) Error() string {
	return ErrSeatUnavailable.Error() + ": " + joinSeats(e.Seats)
}

func (e *SeatUnavailableError) Is(target error) bool { return target == ErrSeatUnavailable }

// UnknownSeatError names seat ids that are not part of the seat map.
type UnknownSeatError struct {
	Seats []SeatID
}

func (e *UnknownSeatError) Error() string {
	return ErrUnknownSeat.Error() + ": " + joinSeats(e.Seats)
}

func (e *UnknownSeatError) Is(target error) bool { return target == ErrUnknownSeat }

// PaymentFailedError carries the gateway's reason for a declined or failed
// charge.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	if e.Reason == "" {
		return ErrPaymentFailed.Error()
	}
	return ErrPaymentFailed.Error() + ": " + e.Reason
}

func (e *PaymentFailedError) Is(target error) bool { return target == ErrPaymentFailed }

// HoldMismatchError is an invariant violation: a release or commit named a
// seat that the hold does not own.
type HoldMismatchError struct {
	Seat   SeatID
	HoldID string
}

func (e *HoldMismatchError) Error() string {
	return ErrHoldMismatch.Error() + ": seat " + e.Seat.String() + " hold " + e.HoldID
}

func (e *HoldMismatchError) Is(target error) bool { return target == ErrHoldMismatch }

// IsInternal reports whether err is an invariant violation that indicates a
// bug rather than a user error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrAlreadyInitialized) || errors.Is(err, ErrHoldMismatch)
}

func joinSeats(ids []SeatID) string {
	return strings.Join(SeatIDStrings(ids), ",")
}
