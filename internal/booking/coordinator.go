// Package booking turns seat selections into holds and holds into sales.
//
// A Coordinator serves one event.  It validates and prices the selection,
// asks the hold manager for a hold, and on confirm charges the payment
// gateway without any lock held, then commits or releases the seats based
// on the outcome.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-reservation-engine/internal/clock"
	"github.com/iliyamo/seat-reservation-engine/internal/hold"
	"github.com/iliyamo/seat-reservation-engine/internal/inventory"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/payment"
	"github.com/iliyamo/seat-reservation-engine/internal/pricing"
)

// Policy holds the tunables of the booking flow.
type Policy struct {
	// HoldTTL is the lifetime of a new hold.
	HoldTTL time.Duration
	// PaymentTimeout bounds one charge attempt.
	PaymentTimeout time.Duration
	// MaxSeatsPerHold limits a selection; zero means no limit.
	MaxSeatsPerHold int
	// ShowHeldSeats renders Held seats as HELD in snapshots; when false
	// they are shown as AVAILABLE.
	ShowHeldSeats bool
}

// DefaultPolicy returns the settings used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		HoldTTL:         hold.DefaultTTL,
		PaymentTimeout:  15 * time.Second,
		MaxSeatsPerHold: 10,
		ShowHeldSeats:   true,
	}
}

// Coordinator runs the booking flow for one event.
type Coordinator struct {
	seatMap   *model.SeatMap
	inv       *inventory.Inventory
	holds     *hold.Manager
	gateway   payment.Gateway
	publisher Publisher
	store     BookingStore
	clock     clock.Clock
	log       *logger.Logger
	policy    Policy

	mu       sync.RWMutex
	bookings map[string]model.Booking // by hold id
}

// BeginHoldInput is a seat selection from one requester.
type BeginHoldInput struct {
	SeatIDs      []model.SeatID
	RequesterRef string
}

// BeginHold validates and prices the selection and places a hold on it.
// Bad input fails with model.ErrInvalidSelection (unknown seats also match
// model.ErrUnknownSeat); taken seats fail with a
// *model.SeatUnavailableError.
func (c *Coordinator) BeginHold(ctx context.Context, in BeginHoldInput) (model.Hold, error) {
	if err := c.validate(in.SeatIDs); err != nil {
		return model.Hold{}, err
	}
	total, err := pricing.Price(c.seatMap, in.SeatIDs)
	if err != nil {
		return model.Hold{}, fmt.Errorf("%w: %w", model.ErrInvalidSelection, err)
	}
	h, err := c.holds.Create(ctx, hold.CreateInput{
		SeatIDs:      in.SeatIDs,
		RequesterRef: in.RequesterRef,
		TTL:          c.policy.HoldTTL,
		TotalCents:   total,
	})
	if err != nil {
		return model.Hold{}, c.internal(ctx, "begin hold", err)
	}
	return h, nil
}

func (c *Coordinator) validate(ids []model.SeatID) error {
	if len(ids) == 0 {
		return &model.InvalidSelectionError{Reason: "no seats selected"}
	}
	if c.policy.MaxSeatsPerHold > 0 && len(ids) > c.policy.MaxSeatsPerHold {
		return &model.InvalidSelectionError{Reason: fmt.Sprintf("at most %d seats per hold", c.policy.MaxSeatsPerHold)}
	}
	seen := make(map[model.SeatID]struct{}, len(ids))
	for _, id := range ids {
		if !id.Valid() {
			return &model.InvalidSelectionError{Reason: "invalid seat id " + id.String()}
		}
		if _, dup := seen[id]; dup {
			return &model.InvalidSelectionError{Reason: "duplicate seat " + id.String()}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Quote prices a selection without touching the inventory.
func (c *Coordinator) Quote(ids []model.SeatID) (pricing.Quotation, error) {
	if err := c.validate(ids); err != nil {
		return pricing.Quotation{}, err
	}
	return pricing.Quote(c.seatMap, ids)
}

// Confirm charges the hold's total to paymentRef and sells its seats.  It
// runs at most one charge per hold: a confirm on a Committed hold, or one
// that arrives while another confirm is paying, returns the same Booking
// with replayed set.  A declined, failed or timed out charge releases the
// seats and returns a *model.PaymentFailedError.  A captured payment whose
// sale cannot be written yet returns an error wrapping
// model.ErrCommitPending; the seats stay reserved until the sweep commits
// them.
func (c *Coordinator) Confirm(ctx context.Context, holdID, paymentRef string) (model.Booking, bool, error) {
	if paymentRef == "" {
		return model.Booking{}, false, &model.InvalidSelectionError{Reason: "payment reference is required"}
	}
	h, claimed, err := c.holds.Claim(ctx, holdID)
	if err != nil {
		return model.Booking{}, false, c.internal(ctx, "confirm", err)
	}
	if !claimed {
		b, err := c.bookingFor(ctx, holdID)
		if err != nil {
			return model.Booking{}, false, err
		}
		return b, true, nil
	}

	// The payment and its settlement outlive a client that disconnects;
	// the payment timeout bounds them instead.
	pctx := context.WithoutCancel(ctx)
	res := payment.Attempt(pctx, c.gateway, payment.ChargeRequest{
		AmountCents: h.TotalCents,
		Reference:   paymentRef,
		Metadata: map[string]string{
			"hold_id":   h.ID,
			"event_id":  h.EventID,
			"requester": h.RequesterRef,
		},
	}, c.policy.PaymentTimeout)

	if !res.Success {
		c.log.LogPaymentFailed(ctx, h.ID, h.EventID, res.Reason)
		if _, err := c.holds.Settle(pctx, h.ID, false, nil); err != nil {
			return model.Booking{}, false, c.internal(ctx, "release after payment failure", err)
		}
		return model.Booking{}, false, &model.PaymentFailedError{Reason: res.Reason}
	}

	booking := model.Booking{
		ID:            uuid.NewString(),
		HoldID:        h.ID,
		EventID:       h.EventID,
		RequesterRef:  h.RequesterRef,
		SeatIDs:       h.SeatIDs,
		TotalCents:    h.TotalCents,
		PaymentRef:    paymentRef,
		TransactionID: res.TransactionID,
		ConfirmedAt:   c.clock.Now(),
	}
	// The booking is stored before the seats are sold so that a paid hold
	// can still be committed after a restart.
	if err := c.store.SaveBooking(pctx, booking); err != nil {
		c.log.WithError(err).Error("save booking", "booking_id", booking.ID, "hold_id", booking.HoldID, "transaction_id", res.TransactionID)
	}
	_, err = c.holds.Settle(pctx, h.ID, true, func(done model.Hold) {
		c.mu.Lock()
		c.bookings[done.ID] = booking
		c.mu.Unlock()
	})
	if errors.Is(err, model.ErrCommitPending) {
		c.log.WithError(err).Error("paid hold not committed yet", "hold_id", h.ID, "transaction_id", res.TransactionID)
		return model.Booking{}, false, err
	}
	if err != nil {
		c.log.LogInvariantViolation(ctx, "commit paid hold "+h.ID+" transaction "+res.TransactionID, err)
		return model.Booking{}, false, c.internal(ctx, "commit", err)
	}
	return booking, false, nil
}

func (c *Coordinator) bookingFor(ctx context.Context, holdID string) (model.Booking, error) {
	c.mu.RLock()
	b, ok := c.bookings[holdID]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}
	b, err := c.store.FindBookingByHold(ctx, holdID)
	if err != nil {
		return model.Booking{}, c.internal(ctx, "load booking", fmt.Errorf("committed hold %s: %w", holdID, err))
	}
	c.mu.Lock()
	c.bookings[holdID] = b
	c.mu.Unlock()
	return b, nil
}

// Cancel releases an Active hold.  It reports whether the hold was
// released by this call; cancelling a hold that is already finalized or
// being confirmed is a no-op.
func (c *Coordinator) Cancel(ctx context.Context, holdID string) (bool, error) {
	ok, err := c.holds.Release(ctx, holdID)
	return ok, c.internal(ctx, "cancel", err)
}

// Extend pushes back the expiry of an Active hold.
func (c *Coordinator) Extend(ctx context.Context, holdID string, extra time.Duration) (model.Hold, error) {
	h, err := c.holds.Extend(ctx, holdID, extra)
	return h, c.internal(ctx, "extend", err)
}

// Lookup returns the hold and, once it is Committed, its booking.
func (c *Coordinator) Lookup(ctx context.Context, holdID string) (model.Hold, *model.Booking, error) {
	h, err := c.holds.Lookup(ctx, holdID)
	if err != nil {
		return model.Hold{}, nil, c.internal(ctx, "lookup", err)
	}
	if h.Status != model.HoldCommitted {
		return h, nil, nil
	}
	b, err := c.bookingFor(ctx, holdID)
	if err != nil {
		return h, nil, err
	}
	return h, &b, nil
}

// Snapshot returns the seat states for display.  Hold ids are stripped and
// Held seats are shown as Available unless the policy shows them.
func (c *Coordinator) Snapshot() (inventory.Snapshot, error) {
	snap, err := c.inv.Snapshot()
	if err != nil {
		return snap, err
	}
	for i := range snap.Seats {
		snap.Seats[i].HoldID = ""
		if !c.policy.ShowHeldSeats && snap.Seats[i].State == model.SeatHeld {
			snap.Seats[i].State = model.SeatAvailable
		}
	}
	if !c.policy.ShowHeldSeats {
		snap.Available += snap.Held
		snap.Held = 0
	}
	return snap, nil
}

// SeatMap returns the event's seat map.
func (c *Coordinator) SeatMap() *model.SeatMap { return c.seatMap }

// Holds exposes the hold manager, used by the registry's sweeper.
func (c *Coordinator) Holds() *hold.Manager { return c.holds }

func (c *Coordinator) hasBooking(holdID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bookings[holdID]
	return ok
}

// releaseOrphans gives back seats Held by a hold the manager does not
// track as live, left behind when the process stopped between reserving
// seats and storing the hold.
func (c *Coordinator) releaseOrphans(ctx context.Context) (int, error) {
	snap, err := c.inv.Snapshot()
	if err != nil {
		return 0, err
	}
	orphans := make(map[string][]model.SeatID)
	for _, s := range snap.Seats {
		if s.State == model.SeatHeld && !c.holds.Tracks(s.HoldID) {
			orphans[s.HoldID] = append(orphans[s.HoldID], s.ID)
		}
	}
	n := 0
	for holdID, ids := range orphans {
		if err := c.inv.Release(ctx, ids, holdID); err != nil {
			return n, err
		}
		n += len(ids)
	}
	return n, nil
}

// onCommit announces a sold hold, including one committed by a sweep
// retry after the confirming call returned.
func (c *Coordinator) onCommit(ctx context.Context, h model.Hold) {
	c.mu.RLock()
	b, ok := c.bookings[h.ID]
	c.mu.RUnlock()
	if !ok {
		c.log.Warn("committed hold has no booking", "hold_id", h.ID)
		return
	}
	c.log.LogBookingConfirmed(ctx, b.ID, b.HoldID, b.EventID, int64(b.TotalCents))
	if err := c.publisher.PublishBookingConfirmed(context.WithoutCancel(ctx), b); err != nil {
		c.log.WithError(err).Warn("publish booking.confirmed", "booking_id", b.ID)
	}
}

func (c *Coordinator) onRelease(ctx context.Context, h model.Hold, reason string) {
	if err := c.publisher.PublishHoldReleased(context.WithoutCancel(ctx), h, reason); err != nil {
		c.log.WithError(err).Warn("publish hold.released", "hold_id", h.ID, "reason", reason)
	}
}

// internal logs invariant violations and hides their detail from callers.
func (c *Coordinator) internal(ctx context.Context, op string, err error) error {
	if err == nil || !model.IsInternal(err) {
		return err
	}
	c.log.LogInvariantViolation(ctx, op, err)
	return ErrInternal
}

// ErrInternal is the opaque error returned for invariant violations.
var ErrInternal = errors.New("internal error")
