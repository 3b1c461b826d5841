// Package inventory owns the authoritative state of every seat of one
// event.  All transitions go through TryReserve, Release and Commit, each
// of which is atomic with respect to the seats it touches.
//
// Seats are guarded by striped mutexes: a seat hashes to one stripe and an
// operation locks the stripes of its seat set in ascending order.  Calls on
// disjoint seat sets therefore run in parallel unless their seats share a
// stripe, and calls on overlapping sets are strictly serialized without
// risk of deadlock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// DefaultStripes is the number of lock stripes used when none is configured.
const DefaultStripes = 64

// ErrNotInitialized is returned by operations on an inventory that has not
// been initialized with a seat map.
var ErrNotInitialized = errors.New("inventory not initialized")

type slot struct {
	state  model.SeatState
	holdID string
}

// Inventory is the seat-state table of one event.
type Inventory struct {
	// mu guards initialization.  Operations hold it for reading, so they
	// never contend with each other on it.
	mu       sync.RWMutex
	seatMap  *model.SeatMap
	slots    map[model.SeatID]*slot
	stripes  []sync.Mutex
	store    Store
	nStripes int
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithStore writes every transition through to s.
func WithStore(s Store) Option {
	return func(inv *Inventory) {
		if s != nil {
			inv.store = s
		}
	}
}

// WithStripes sets the number of lock stripes.  Values below one are
// ignored.
func WithStripes(n int) Option {
	return func(inv *Inventory) {
		if n > 0 {
			inv.nStripes = n
		}
	}
}

// New returns an empty inventory.  Call Initialize before use.
func New(opts ...Option) *Inventory {
	inv := &Inventory{store: nopStore{}, nStripes: DefaultStripes}
	for _, o := range opts {
		o(inv)
	}
	inv.stripes = make([]sync.Mutex, inv.nStripes)
	return inv
}

// Initialize sets every seat of seatMap to Available.  A second call fails
// with model.ErrAlreadyInitialized.
func (inv *Inventory) Initialize(ctx context.Context, seatMap *model.SeatMap) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.seatMap != nil {
		return fmt.Errorf("initialize %s: %w", seatMap.EventID(), model.ErrAlreadyInitialized)
	}
	seats := seatMap.Seats()
	if err := inv.store.InitSeats(ctx, seatMap.EventID(), seats); err != nil {
		return fmt.Errorf("initialize %s: %w", seatMap.EventID(), err)
	}
	slots := make(map[model.SeatID]*slot, len(seats))
	for _, s := range seats {
		slots[s.ID] = &slot{state: model.SeatAvailable}
	}
	inv.seatMap = seatMap
	inv.slots = slots
	return nil
}

// SeatMap returns the map the inventory was initialized with, or nil.
func (inv *Inventory) SeatMap() *model.SeatMap {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.seatMap
}

// Restore overwrites the in-memory state of the listed seats with records
// read back from the store.  It does not write to the store.
func (inv *Inventory) Restore(records []SeatRecord) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.seatMap == nil {
		return ErrNotInitialized
	}
	for _, r := range records {
		sl, ok := inv.slots[r.ID]
		if !ok {
			return &model.UnknownSeatError{Seats: []model.SeatID{r.ID}}
		}
		sl.state = r.State
		sl.holdID = ""
		if r.State == model.SeatHeld {
			sl.holdID = r.HoldID
		}
	}
	return nil
}

// TryReserve moves every seat in ids from Available to Held by holdID, or
// none of them.  When any seat is not Available the call fails with a
// *model.SeatUnavailableError naming every conflicting seat.
func (inv *Inventory) TryReserve(ctx context.Context, ids []model.SeatID, holdID string) error {
	if holdID == "" {
		return &model.InvalidSelectionError{Reason: "hold id is required"}
	}
	unlock, err := inv.lock(ids)
	if err != nil {
		return err
	}
	defer unlock()

	var conflicts []model.SeatID
	for _, id := range ids {
		if inv.slots[id].state != model.SeatAvailable {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		return &model.SeatUnavailableError{Seats: conflicts}
	}
	return inv.apply(ctx, ids, model.SeatHeld, holdID)
}

// Release moves seats held by holdID back to Available.  It fails with a
// *model.HoldMismatchError, changing nothing, if any seat is not held by
// holdID.
func (inv *Inventory) Release(ctx context.Context, ids []model.SeatID, holdID string) error {
	return inv.finish(ctx, ids, holdID, model.SeatAvailable)
}

// Commit moves seats held by holdID to Sold.  Same mismatch check as
// Release.
func (inv *Inventory) Commit(ctx context.Context, ids []model.SeatID, holdID string) error {
	return inv.finish(ctx, ids, holdID, model.SeatSold)
}

func (inv *Inventory) finish(ctx context.Context, ids []model.SeatID, holdID string, to model.SeatState) error {
	unlock, err := inv.lock(ids)
	if err != nil {
		return err
	}
	defer unlock()

	for _, id := range ids {
		sl := inv.slots[id]
		if sl.state != model.SeatHeld || sl.holdID != holdID {
			return &model.HoldMismatchError{Seat: id, HoldID: holdID}
		}
	}
	return inv.apply(ctx, ids, to, "")
}

// apply performs the transition with the stripes of ids locked and writes
// it through.  On a store failure every seat gets its previous state back.
func (inv *Inventory) apply(ctx context.Context, ids []model.SeatID, to model.SeatState, holdID string) error {
	prev := make([]slot, len(ids))
	changes := make([]SeatRecord, len(ids))
	for i, id := range ids {
		sl := inv.slots[id]
		prev[i] = *sl
		sl.state = to
		sl.holdID = holdID
		changes[i] = SeatRecord{ID: id, State: to, HoldID: holdID}
	}
	if err := inv.store.SaveSeatStates(ctx, inv.seatMap.EventID(), changes); err != nil {
		for i, id := range ids {
			*inv.slots[id] = prev[i]
		}
		return fmt.Errorf("persist seat states: %w", err)
	}
	return nil
}

// lock validates ids and locks their stripes.  The returned func releases
// the stripes and the initialization read lock.
func (inv *Inventory) lock(ids []model.SeatID) (func(), error) {
	if len(ids) == 0 {
		return nil, &model.InvalidSelectionError{Reason: "no seats selected"}
	}
	inv.mu.RLock()
	if inv.seatMap == nil {
		inv.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	seen := make(map[model.SeatID]struct{}, len(ids))
	var unknown []model.SeatID
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			inv.mu.RUnlock()
			return nil, &model.InvalidSelectionError{Reason: "duplicate seat " + id.String()}
		}
		seen[id] = struct{}{}
		if _, ok := inv.slots[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		inv.mu.RUnlock()
		return nil, &model.UnknownSeatError{Seats: unknown}
	}

	idx := inv.stripeSet(ids)
	for _, i := range idx {
		inv.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			inv.stripes[idx[j]].Unlock()
		}
		inv.mu.RUnlock()
	}, nil
}

// stripeSet returns the distinct stripes of ids in ascending order.
func (inv *Inventory) stripeSet(ids []model.SeatID) []int {
	set := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		i := inv.stripeOf(id)
		if _, ok := set[i]; ok {
			continue
		}
		set[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (inv *Inventory) stripeOf(id model.SeatID) int {
	h := fnv.New32a()
	h.Write([]byte(id.Row))
	n := id.Number
	h.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return int(h.Sum32() % uint32(inv.nStripes))
}
