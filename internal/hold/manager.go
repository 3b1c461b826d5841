// Package hold manages time-bounded holds on seats of one event.
//
// Every hold is guarded by its own mutex and changes status only through a
// compare-and-set on that status, so of a concurrent expiry, cancel and
// confirm exactly one finalizes the hold and the others observe the result.
// A confirm first claims the hold (Active to Confirming); expiry and cancel
// leave a Confirming hold alone until the payment outcome finalizes it.
package hold

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-reservation-engine/internal/clock"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

const (
	// DefaultTTL is the lifetime of a hold when none is requested.
	DefaultTTL = 10 * time.Minute
	// MaxHoldLifetime caps how far extensions can push expiry past creation.
	MaxHoldLifetime = 30 * time.Minute
)

// Release reasons passed to a release listener.
const (
	ReasonCancelled     = "cancelled"
	ReasonExpired       = "expired"
	ReasonPaymentFailed = "payment_failed"
	// ReasonCommitFailed marks a paid hold whose seats could not be sold;
	// the charge needs a refund.
	ReasonCommitFailed = "commit_failed"
	// ReasonReconciled marks a hold finalized because its seats were no
	// longer held by it, after a partial write or a crash.
	ReasonReconciled = "reconciled"
)

// ReleaseListener is notified after a hold gave its seats back.  It runs
// outside every lock.
type ReleaseListener func(ctx context.Context, h model.Hold, reason string)

// CommitListener is notified after a hold's seats were sold.  It runs
// outside every lock.
type CommitListener func(ctx context.Context, h model.Hold)

type entry struct {
	mu   sync.Mutex
	hold model.Hold
	// settled is closed when a Confirming hold reaches its final status.
	settled chan struct{}
	// commitPending is set on a Confirming hold whose payment was captured
	// but whose seats could not be sold yet; the sweep retries the commit
	// and then runs record.
	commitPending bool
	record        func(model.Hold)
}

// Manager owns the holds of one event.
type Manager struct {
	eventID     string
	seats       Seats
	store       Store
	clock       clock.Clock
	log         *logger.Logger
	maxLifetime time.Duration
	onRelease   ReleaseListener
	onCommit    CommitListener
	newID       func() string

	mu    sync.RWMutex
	holds map[string]*entry
	queue expiryQueue
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithStore writes every hold transition through to s.
func WithStore(s Store) Option {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMaxLifetime overrides MaxHoldLifetime.
func WithMaxLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxLifetime = d
		}
	}
}

// WithReleaseListener registers fn for expired, cancelled and payment
// failed holds.
func WithReleaseListener(fn ReleaseListener) Option {
	return func(m *Manager) { m.onRelease = fn }
}

// WithCommitListener registers fn for holds whose seats were sold,
// including commits completed by a sweep retry.
func WithCommitListener(fn CommitListener) Option {
	return func(m *Manager) { m.onCommit = fn }
}

// NewManager returns a Manager for eventID reserving seats through seats.
func NewManager(eventID string, seats Seats, opts ...Option) *Manager {
	m := &Manager{
		eventID:     eventID,
		seats:       seats,
		store:       nopStore{},
		clock:       clock.NewSystem(),
		log:         logger.Nop(),
		maxLifetime: MaxHoldLifetime,
		newID:       uuid.NewString,
		holds:       make(map[string]*entry),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CreateInput describes a new hold.  SeatIDs must already be validated and
// priced by the caller.
type CreateInput struct {
	SeatIDs      []model.SeatID
	RequesterRef string
	TTL          time.Duration
	TotalCents   model.Cents
}

// Create reserves the seats and records an Active hold expiring after TTL.
// When the seats cannot be reserved the inventory error, typically a
// *model.SeatUnavailableError, is returned and no hold exists.
func (m *Manager) Create(ctx context.Context, in CreateInput) (model.Hold, error) {
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl > m.maxLifetime {
		ttl = m.maxLifetime
	}
	ids := make([]model.SeatID, len(in.SeatIDs))
	copy(ids, in.SeatIDs)
	model.SortSeatIDs(ids)

	id := m.newID()
	if err := m.seats.TryReserve(ctx, ids, id); err != nil {
		return model.Hold{}, err
	}

	now := m.clock.Now()
	h := model.Hold{
		ID:           id,
		EventID:      m.eventID,
		RequesterRef: in.RequesterRef,
		SeatIDs:      ids,
		TotalCents:   in.TotalCents,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		Status:       model.HoldActive,
	}
	if err := m.store.SaveHold(ctx, h); err != nil {
		if rerr := m.seats.Release(ctx, ids, id); rerr != nil {
			m.log.LogInvariantViolation(ctx, "create hold rollback", rerr)
		}
		return model.Hold{}, fmt.Errorf("save hold: %w", err)
	}

	m.mu.Lock()
	m.holds[id] = &entry{hold: h}
	m.queue.schedule(id, h.ExpiresAt)
	m.mu.Unlock()

	m.log.LogHoldCreated(ctx, id, m.eventID, model.SeatIDStrings(ids), h.ExpiresAt)
	return h.Clone(), nil
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.holds[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("hold %s: %w", id, model.ErrHoldNotFound)
	}
	return e, nil
}

// Lookup returns the current hold record.  An Active hold past its expiry
// is expired first.
func (m *Manager) Lookup(ctx context.Context, id string) (model.Hold, error) {
	e, err := m.get(id)
	if err != nil {
		return model.Hold{}, err
	}
	e.mu.Lock()
	expired, err := m.expireLocked(ctx, e)
	h := e.hold.Clone()
	e.mu.Unlock()
	if expired {
		m.released(ctx, h, ReasonExpired)
	}
	return h, err
}

// Expire finalizes the hold as Expired if it is Active and past expiry,
// giving its seats back.  It reports whether this call made the
// transition; every other case is a no-op.
func (m *Manager) Expire(ctx context.Context, id string) (bool, error) {
	e, err := m.get(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	expired, err := m.expireLocked(ctx, e)
	h := e.hold.Clone()
	e.mu.Unlock()
	if expired {
		m.released(ctx, h, ReasonExpired)
	}
	return expired, err
}

// expireLocked must be called with e.mu held.
func (m *Manager) expireLocked(ctx context.Context, e *entry) (bool, error) {
	if e.hold.Status != model.HoldActive || !e.hold.PastExpiry(m.clock.Now()) {
		return false, nil
	}
	if err := m.finalizeLocked(ctx, e, model.HoldExpired); err != nil {
		return false, err
	}
	return true, nil
}

// finalizeLocked gives back or sells the seats and then stores the new
// status.  If either step fails the hold keeps its previous status.
func (m *Manager) finalizeLocked(ctx context.Context, e *entry, to model.HoldStatus) error {
	h := e.hold
	var err error
	if to == model.HoldCommitted {
		err = m.seats.Commit(ctx, h.SeatIDs, h.ID)
	} else {
		err = m.seats.Release(ctx, h.SeatIDs, h.ID)
	}
	if err != nil && to != model.HoldCommitted && errors.Is(err, model.ErrHoldMismatch) {
		// Some seats already moved on; give back the ones still held so
		// the hold can finish instead of failing on every sweep.
		m.log.LogInvariantViolation(ctx, "finalize hold "+h.ID, err)
		err = m.releaseOwnedLocked(ctx, h)
	}
	if err != nil {
		if model.IsInternal(err) {
			m.log.LogInvariantViolation(ctx, "finalize hold "+h.ID, err)
		}
		return fmt.Errorf("finalize hold %s: %w", h.ID, err)
	}

	prev := e.hold.Status
	e.hold.Status = to
	if err := m.store.SaveHold(ctx, e.hold); err != nil {
		// The seats already moved; Restore reconciles a stale record
		// against the stored seat states.
		m.log.WithError(err).Error("save finalized hold", "hold_id", h.ID, "from", string(prev), "to", string(to))
	}
	m.log.LogHoldFinalized(ctx, h.ID, m.eventID, string(to))
	return nil
}

// Extend pushes the expiry of an Active hold back by extra, never past
// creation plus the maximum lifetime.
func (m *Manager) Extend(ctx context.Context, id string, extra time.Duration) (model.Hold, error) {
	if extra <= 0 {
		return model.Hold{}, &model.InvalidSelectionError{Reason: "extension must be positive"}
	}
	e, err := m.get(id)
	if err != nil {
		return model.Hold{}, err
	}

	e.mu.Lock()
	expired, err := m.expireLocked(ctx, e)
	if err != nil || expired {
		h := e.hold.Clone()
		e.mu.Unlock()
		if expired {
			m.released(ctx, h, ReasonExpired)
			return h, fmt.Errorf("hold %s: %w", id, model.ErrHoldExpired)
		}
		return h, err
	}
	if e.hold.Status != model.HoldActive {
		h := e.hold.Clone()
		e.mu.Unlock()
		return h, fmt.Errorf("hold %s is %s: %w", id, h.Status, model.ErrHoldNotActive)
	}

	prev := e.hold.ExpiresAt
	next := prev.Add(extra)
	if limit := e.hold.CreatedAt.Add(m.maxLifetime); next.After(limit) {
		next = limit
	}
	e.hold.ExpiresAt = next
	if err := m.store.SaveHold(ctx, e.hold); err != nil {
		e.hold.ExpiresAt = prev
		e.mu.Unlock()
		return model.Hold{}, fmt.Errorf("save hold: %w", err)
	}
	h := e.hold.Clone()
	e.mu.Unlock()

	m.mu.Lock()
	m.queue.schedule(id, next)
	m.mu.Unlock()
	return h, nil
}

// Release cancels an Active hold and gives its seats back.  It reports
// whether this call released the hold; a hold that is already terminal or
// whose payment is in flight is left alone.
func (m *Manager) Release(ctx context.Context, id string) (bool, error) {
	e, err := m.get(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	expired, err := m.expireLocked(ctx, e)
	if err != nil || expired || e.hold.Status != model.HoldActive {
		h := e.hold.Clone()
		e.mu.Unlock()
		if expired {
			m.released(ctx, h, ReasonExpired)
		}
		return false, err
	}
	if err := m.finalizeLocked(ctx, e, model.HoldReleased); err != nil {
		e.mu.Unlock()
		return false, err
	}
	h := e.hold.Clone()
	e.mu.Unlock()
	m.released(ctx, h, ReasonCancelled)
	return true, nil
}

// Claim moves an Active hold to Confirming so that its payment can run
// without the lock held.  claimed is false when the hold was already
// Committed; the caller then replays the existing result.  A Confirming
// hold is waited on until it settles or ctx ends.
func (m *Manager) Claim(ctx context.Context, id string) (model.Hold, bool, error) {
	e, err := m.get(id)
	if err != nil {
		return model.Hold{}, false, err
	}
	for {
		e.mu.Lock()
		expired, err := m.expireLocked(ctx, e)
		if err != nil {
			e.mu.Unlock()
			return model.Hold{}, false, err
		}
		switch e.hold.Status {
		case model.HoldActive:
			if !m.ownsLocked(e.hold) {
				h, err := m.reconcileLocked(ctx, e)
				e.mu.Unlock()
				if err != nil {
					return h, false, err
				}
				m.released(ctx, h, ReasonReconciled)
				return h, false, fmt.Errorf("hold %s no longer owns its seats: %w", id, model.ErrHoldNotActive)
			}
			e.hold.Status = model.HoldConfirming
			if err := m.store.SaveHold(ctx, e.hold); err != nil {
				e.hold.Status = model.HoldActive
				e.mu.Unlock()
				return model.Hold{}, false, fmt.Errorf("save hold: %w", err)
			}
			e.settled = make(chan struct{})
			h := e.hold.Clone()
			e.mu.Unlock()
			return h, true, nil
		case model.HoldConfirming:
			wait := e.settled
			e.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return model.Hold{}, false, ctx.Err()
			}
		case model.HoldCommitted:
			h := e.hold.Clone()
			e.mu.Unlock()
			return h, false, nil
		case model.HoldExpired:
			h := e.hold.Clone()
			e.mu.Unlock()
			if expired {
				m.released(ctx, h, ReasonExpired)
			}
			return h, false, fmt.Errorf("hold %s: %w", id, model.ErrHoldExpired)
		default:
			h := e.hold.Clone()
			e.mu.Unlock()
			return h, false, fmt.Errorf("hold %s is %s: %w", id, h.Status, model.ErrHoldNotActive)
		}
	}
}

// Settle finalizes a claimed hold.  With paid set the seats are sold and
// record runs before any waiting Claim wakes up; otherwise the seats are
// released.
//
// When the payment succeeded but the seats cannot be sold because the
// write failed, the hold stays Confirming, the commit is retried by the
// sweep and the error wraps model.ErrCommitPending.  Seats that no longer
// belong to the hold are released with ReasonCommitFailed.  If the seats
// cannot be released either, the hold goes back to Active so that the
// next sweep retries the release.
func (m *Manager) Settle(ctx context.Context, id string, paid bool, record func(model.Hold)) (model.Hold, error) {
	e, err := m.get(id)
	if err != nil {
		return model.Hold{}, err
	}
	e.mu.Lock()
	if e.hold.Status != model.HoldConfirming || e.commitPending {
		h := e.hold.Clone()
		e.mu.Unlock()
		return h, fmt.Errorf("settle hold %s in status %s: %w", id, h.Status, model.ErrHoldNotActive)
	}
	settled := e.settled
	e.settled = nil
	defer close(settled)

	reason := ReasonPaymentFailed
	var commitErr error
	if paid {
		commitErr = m.finalizeLocked(ctx, e, model.HoldCommitted)
		if commitErr == nil {
			h := e.hold.Clone()
			if record != nil {
				record(h)
			}
			e.mu.Unlock()
			m.committed(ctx, h)
			return h, nil
		}
		if !errors.Is(commitErr, model.ErrHoldMismatch) {
			m.log.WithError(commitErr).Error("commit after payment failed, retrying", "hold_id", id)
			e.commitPending = true
			e.record = record
			// Waiting confirms wake on the old channel and park on this one.
			e.settled = make(chan struct{})
			h := e.hold.Clone()
			e.mu.Unlock()
			m.mu.Lock()
			m.queue.schedule(id, m.clock.Now())
			m.mu.Unlock()
			return h, fmt.Errorf("hold %s: %w: %w", id, model.ErrCommitPending, commitErr)
		}
		m.log.WithError(commitErr).Error("commit after payment failed, releasing seats", "hold_id", id)
		reason = ReasonCommitFailed
	}

	if err := m.finalizeLocked(ctx, e, model.HoldReleased); err != nil {
		m.log.LogInvariantViolation(ctx, "release settled hold "+id, err)
		e.hold.Status = model.HoldActive
		m.mu.Lock()
		m.queue.schedule(id, m.clock.Now())
		m.mu.Unlock()
		h := e.hold.Clone()
		e.mu.Unlock()
		return h, err
	}
	h := e.hold.Clone()
	e.mu.Unlock()
	m.released(ctx, h, reason)
	return h, commitErr
}

// retryCommit sells the seats of a hold whose commit is pending.  It
// reports whether this call committed the hold.
func (m *Manager) retryCommit(ctx context.Context, id string) (bool, error) {
	e, err := m.get(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	if !e.commitPending || e.hold.Status != model.HoldConfirming {
		e.mu.Unlock()
		return false, nil
	}
	if err := m.finalizeLocked(ctx, e, model.HoldCommitted); err != nil {
		e.mu.Unlock()
		return false, err
	}
	e.commitPending = false
	h := e.hold.Clone()
	if e.record != nil {
		e.record(h)
		e.record = nil
	}
	close(e.settled)
	e.settled = nil
	e.mu.Unlock()
	m.committed(ctx, h)
	return true, nil
}

func (m *Manager) pending(id string) bool {
	e, err := m.get(id)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitPending
}

// Sweep expires every Active hold whose deadline has passed, retries
// pending commits and returns the number of holds it finalized.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.clock.Now()
	m.mu.Lock()
	due := m.queue.due(now)
	m.mu.Unlock()

	n := 0
	for _, id := range due {
		var ok bool
		var err error
		if m.pending(id) {
			ok, err = m.retryCommit(ctx, id)
		} else {
			ok, err = m.Expire(ctx, id)
		}
		if err != nil && !errors.Is(err, model.ErrHoldNotFound) {
			m.log.WithError(err).Warn("sweep hold", "hold_id", id)
			// Retry on the next sweep.
			m.mu.Lock()
			m.queue.schedule(id, now)
			m.mu.Unlock()
			continue
		}
		if ok {
			n++
		}
	}
	return n
}

// Restore loads hold records read back from the store and reconciles the
// live ones against the seat states already restored in the inventory.
// booked reports whether a booking was stored for a hold id.
//
//   - A live hold that still holds its seats and has a booking was paid;
//     its commit is retried by the next sweep.
//   - A live hold whose seats are all Sold and that has a booking is
//     marked Committed.
//   - A hold that was Confirming without a booking has an unknown payment
//     outcome; it goes back to Active so that it expires normally.
//   - Any other live hold lost its seats: the seats it still holds are
//     released and it is marked Released.
//
// Restore returns the number of holds it released.
func (m *Manager) Restore(ctx context.Context, holds []model.Hold, booked func(holdID string) bool) int {
	if booked == nil {
		booked = func(string) bool { return false }
	}
	var reconciled []model.Hold
	entries := make(map[string]*entry, len(holds))
	for _, h := range holds {
		e := &entry{hold: h.Clone()}
		entries[h.ID] = e
		if e.hold.Status.Terminal() {
			continue
		}
		paid := booked(h.ID)
		switch {
		case m.ownsLocked(e.hold) && paid:
			m.log.Warn("hold was paid but not committed, retrying commit", "hold_id", h.ID)
			e.hold.Status = model.HoldConfirming
			e.commitPending = true
			e.settled = make(chan struct{})
		case m.ownsLocked(e.hold):
			if e.hold.Status == model.HoldConfirming {
				m.log.Warn("hold was confirming at shutdown, reverting to active", "hold_id", h.ID)
				e.hold.Status = model.HoldActive
			}
		case paid && m.soldLocked(e.hold):
			e.hold.Status = model.HoldCommitted
			if err := m.store.SaveHold(ctx, e.hold); err != nil {
				m.log.WithError(err).Error("save reconciled hold", "hold_id", h.ID)
			}
			m.log.LogHoldFinalized(ctx, h.ID, m.eventID, string(model.HoldCommitted))
		default:
			m.log.Warn("hold no longer owns its seats, releasing", "hold_id", h.ID, "status", string(h.Status))
			rh, err := m.reconcileLocked(ctx, e)
			if err != nil {
				m.log.WithError(err).Error("reconcile hold", "hold_id", h.ID)
				continue
			}
			reconciled = append(reconciled, rh)
		}
	}

	now := m.clock.Now()
	m.mu.Lock()
	for id, e := range entries {
		m.holds[id] = e
		switch {
		case e.commitPending:
			m.queue.schedule(id, now)
		case e.hold.Status == model.HoldActive:
			m.queue.schedule(id, e.hold.ExpiresAt)
		}
	}
	m.mu.Unlock()

	for _, h := range reconciled {
		m.released(ctx, h, ReasonReconciled)
	}
	return len(reconciled)
}

// Tracks reports whether id is a hold that may still own seats.
func (m *Manager) Tracks(id string) bool {
	e, err := m.get(id)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.hold.Status.Terminal()
}

// ownsLocked reports whether every seat of h is Held by h.
func (m *Manager) ownsLocked(h model.Hold) bool {
	for _, id := range h.SeatIDs {
		st, holder, err := m.seats.StateOf(id)
		if err != nil || st != model.SeatHeld || holder != h.ID {
			return false
		}
	}
	return len(h.SeatIDs) > 0
}

// soldLocked reports whether every seat of h is Sold.
func (m *Manager) soldLocked(h model.Hold) bool {
	for _, id := range h.SeatIDs {
		st, _, err := m.seats.StateOf(id)
		if err != nil || st != model.SeatSold {
			return false
		}
	}
	return len(h.SeatIDs) > 0
}

// releaseOwnedLocked gives back the seats of h that are still Held by it.
func (m *Manager) releaseOwnedLocked(ctx context.Context, h model.Hold) error {
	var owned []model.SeatID
	for _, id := range h.SeatIDs {
		st, holder, err := m.seats.StateOf(id)
		if err == nil && st == model.SeatHeld && holder == h.ID {
			owned = append(owned, id)
		}
	}
	if len(owned) == 0 {
		return nil
	}
	return m.seats.Release(ctx, owned, h.ID)
}

// reconcileLocked finalizes a live hold that lost some of its seats as
// Released.
func (m *Manager) reconcileLocked(ctx context.Context, e *entry) (model.Hold, error) {
	if err := m.releaseOwnedLocked(ctx, e.hold); err != nil {
		return e.hold.Clone(), fmt.Errorf("reconcile hold %s: %w", e.hold.ID, err)
	}
	e.hold.Status = model.HoldReleased
	e.commitPending = false
	if err := m.store.SaveHold(ctx, e.hold); err != nil {
		m.log.WithError(err).Error("save reconciled hold", "hold_id", e.hold.ID)
	}
	m.log.LogHoldFinalized(ctx, e.hold.ID, m.eventID, string(model.HoldReleased))
	return e.hold.Clone(), nil
}

// Len returns the number of holds known to the manager in any status.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.holds)
}

func (m *Manager) committed(ctx context.Context, h model.Hold) {
	if m.onCommit != nil {
		m.onCommit(ctx, h)
	}
}

func (m *Manager) released(ctx context.Context, h model.Hold, reason string) {
	if m.onRelease != nil {
		m.onRelease(ctx, h, reason)
	}
}
