package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/clock"
	"github.com/iliyamo/seat-reservation-engine/internal/hold"
	"github.com/iliyamo/seat-reservation-engine/internal/inventory"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/payment"
)

// Deps are the collaborators shared by every event.  Nil stores and
// publisher fall back to in-memory no-ops.
type Deps struct {
	Gateway   payment.Gateway
	Publisher Publisher
	SeatStore inventory.Store
	HoldStore hold.Store
	Bookings  BookingStore
	Clock     clock.Clock
	Logger    *logger.Logger
}

// Registry owns one Coordinator per event id.
type Registry struct {
	deps   Deps
	policy Policy

	mu      sync.RWMutex
	events  map[string]*Coordinator
	pending map[string]struct{} // ids being initialized
	sweeper *hold.Sweeper
}

// NewRegistry returns an empty registry.
func NewRegistry(policy Policy, deps Deps) *Registry {
	if deps.Gateway == nil {
		deps.Gateway = payment.NewMock("", 0)
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if deps.Bookings == nil {
		deps.Bookings = nopBookingStore{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if policy.PaymentTimeout <= 0 {
		policy.PaymentTimeout = DefaultPolicy().PaymentTimeout
	}
	return &Registry{deps: deps, policy: policy, events: make(map[string]*Coordinator), pending: make(map[string]struct{})}
}

// Register initializes the inventory of a new event.  It fails with
// model.ErrEventExists when the id is taken.
// The id is reserved while the inventory is written, so lookups of other
// events are not blocked by the store.
func (r *Registry) Register(ctx context.Context, seatMap *model.SeatMap) (*Coordinator, error) {
	id := seatMap.EventID()
	r.mu.Lock()
	_, taken := r.events[id]
	_, busy := r.pending[id]
	if taken || busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("register %s: %w", id, model.ErrEventExists)
	}
	r.pending[id] = struct{}{}
	r.mu.Unlock()

	c, err := r.build(ctx, seatMap)

	r.mu.Lock()
	delete(r.pending, id)
	if err == nil {
		r.events[id] = c
	}
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r.deps.Logger.Info("event registered", "event_id", id, "seats", seatMap.Len())
	return c, nil
}

func (r *Registry) build(ctx context.Context, seatMap *model.SeatMap) (*Coordinator, error) {
	inv := inventory.New(inventory.WithStore(r.deps.SeatStore))
	if err := inv.Initialize(ctx, seatMap); err != nil {
		return nil, err
	}
	log := r.deps.Logger.WithEvent(seatMap.EventID())
	c := &Coordinator{
		seatMap:   seatMap,
		inv:       inv,
		gateway:   r.deps.Gateway,
		publisher: r.deps.Publisher,
		store:     r.deps.Bookings,
		clock:     r.deps.Clock,
		log:       log,
		policy:    r.policy,
		bookings:  make(map[string]model.Booking),
	}
	c.holds = hold.NewManager(seatMap.EventID(), inv,
		hold.WithClock(r.deps.Clock),
		hold.WithStore(r.deps.HoldStore),
		hold.WithLogger(log),
		hold.WithReleaseListener(c.onRelease),
		hold.WithCommitListener(c.onCommit),
	)
	return c, nil
}

// Get returns the coordinator of eventID or model.ErrEventNotFound.
func (r *Registry) Get(eventID string) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, model.ErrEventNotFound)
	}
	return c, nil
}

// Events returns the registered event ids in order.
func (r *Registry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.events))
	for id := range r.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) coordinators() []*Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Coordinator, 0, len(r.events))
	for _, c := range r.events {
		out = append(out, c)
	}
	return out
}

// SweepAll expires due holds of every event and returns how many it
// finalized.
func (r *Registry) SweepAll(ctx context.Context) int {
	n := 0
	for _, c := range r.coordinators() {
		n += c.holds.Sweep(ctx)
	}
	return n
}

// StartSweeper runs SweepAll every interval until Stop.
func (r *Registry) StartSweeper(interval time.Duration) {
	r.mu.Lock()
	if r.sweeper != nil {
		r.mu.Unlock()
		return
	}
	r.sweeper = hold.NewSweeper(interval, r.SweepAll, r.deps.Logger)
	s := r.sweeper
	r.mu.Unlock()
	s.Start()
}

// Stop stops the sweeper started by StartSweeper.
func (r *Registry) Stop() {
	r.mu.RLock()
	s := r.sweeper
	r.mu.RUnlock()
	if s != nil {
		s.Stop()
	}
}

// Restore rebuilds every event from the store: the seat map, the seat
// states, the bookings and the holds.  Holds are reconciled against the
// seat states and bookings, and seats held by a hold that is no longer
// live are released.  Holds that expired while the process was down are
// released by the first sweep.
func (r *Registry) Restore(ctx context.Context, l Loader) (int, error) {
	maps, err := l.LoadSeatMaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("load seat maps: %w", err)
	}
	for _, m := range maps {
		c, err := r.Register(ctx, m)
		if err != nil {
			return 0, err
		}
		states, err := l.LoadSeatStates(ctx, m.EventID())
		if err != nil {
			return 0, fmt.Errorf("load seat states %s: %w", m.EventID(), err)
		}
		if err := c.inv.Restore(states); err != nil {
			return 0, fmt.Errorf("restore seat states %s: %w", m.EventID(), err)
		}
		bookings, err := l.LoadBookings(ctx, m.EventID())
		if err != nil {
			return 0, fmt.Errorf("load bookings %s: %w", m.EventID(), err)
		}
		c.mu.Lock()
		for _, b := range bookings {
			c.bookings[b.HoldID] = b
		}
		c.mu.Unlock()
		holds, err := l.LoadHolds(ctx, m.EventID())
		if err != nil {
			return 0, fmt.Errorf("load holds %s: %w", m.EventID(), err)
		}
		released := c.holds.Restore(ctx, holds, c.hasBooking)
		orphans, err := c.releaseOrphans(ctx)
		if err != nil {
			return 0, fmt.Errorf("release orphaned seats %s: %w", m.EventID(), err)
		}
		if released > 0 || orphans > 0 {
			c.log.Warn("reconciled restored state", "holds_released", released, "orphaned_seats", orphans)
		}
	}
	return len(maps), nil
}
