package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

var (
	a1 = model.SeatID{Row: "A", Number: 1}
	a2 = model.SeatID{Row: "A", Number: 2}
	b1 = model.SeatID{Row: "B", Number: 1}
)

func scenarioMap(t *testing.T) *model.SeatMap {
	t.Helper()
	m, err := model.NewSeatMap("evt-1", []model.Seat{
		{ID: a1, Tier: model.TierVIP, PriceCents: 25000},
		{ID: a2, Tier: model.TierVIP, PriceCents: 25000},
		{ID: b1, Tier: model.TierNormal, PriceCents: 15000},
	})
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	return m
}

func newInventory(t *testing.T, opts ...Option) *Inventory {
	t.Helper()
	inv := New(opts...)
	if err := inv.Initialize(context.Background(), scenarioMap(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return inv
}

func stateOf(t *testing.T, inv *Inventory, id model.SeatID) model.SeatState {
	t.Helper()
	st, _, err := inv.StateOf(id)
	if err != nil {
		t.Fatalf("state of %s: %v", id, err)
	}
	return st
}

func TestInitializeTwice(t *testing.T) {
	t.Parallel()

	inv := newInventory(t)
	err := inv.Initialize(context.Background(), scenarioMap(t))
	if !errors.Is(err, model.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	t.Parallel()

	inv := New()
	if err := inv.TryReserve(context.Background(), []model.SeatID{a1}, "h1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := inv.Snapshot(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestTryReserve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(*Inventory)
		seats   []model.SeatID
		wantErr error
		blocked []model.SeatID
	}{
		{name: "all available", seats: []model.SeatID{a1, a2}},
		{
			name:    "overlap names only the conflicting seat",
			prepare: func(inv *Inventory) { _ = inv.TryReserve(context.Background(), []model.SeatID{a1, a2}, "other") },
			seats:   []model.SeatID{a2, b1},
			wantErr: model.ErrSeatUnavailable,
			blocked: []model.SeatID{a2},
		},
		{
			name: "sold seat is unavailable",
			prepare: func(inv *Inventory) {
				_ = inv.TryReserve(context.Background(), []model.SeatID{b1}, "other")
				_ = inv.Commit(context.Background(), []model.SeatID{b1}, "other")
			},
			seats:   []model.SeatID{b1},
			wantErr: model.ErrSeatUnavailable,
			blocked: []model.SeatID{b1},
		},
		{name: "empty selection", seats: nil, wantErr: model.ErrInvalidSelection},
		{name: "duplicate seat", seats: []model.SeatID{a1, a1}, wantErr: model.ErrInvalidSelection},
		{name: "unknown seat", seats: []model.SeatID{a1, {Row: "Z", Number: 1}}, wantErr: model.ErrUnknownSeat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inv := newInventory(t)
			if tt.prepare != nil {
				tt.prepare(inv)
			}
			before, _ := inv.Snapshot()

			err := inv.TryReserve(context.Background(), tt.seats, "h1")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				for _, id := range tt.seats {
					st, holder, _ := inv.StateOf(id)
					if st != model.SeatHeld || holder != "h1" {
						t.Fatalf("seat %s: got %s/%s", id, st, holder)
					}
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.blocked != nil {
				var sue *model.SeatUnavailableError
				if !errors.As(err, &sue) || fmt.Sprint(sue.Seats) != fmt.Sprint(tt.blocked) {
					t.Fatalf("expected conflicts %v, got %v", tt.blocked, err)
				}
			}
			after, _ := inv.Snapshot()
			if fmt.Sprint(before) != fmt.Sprint(after) {
				t.Fatalf("failed reserve mutated state:\nbefore %v\nafter  %v", before, after)
			}
		})
	}
}

func TestReleaseAndCommitCheckOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inv := newInventory(t)
	if err := inv.TryReserve(ctx, []model.SeatID{a1, a2}, "h1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := inv.Release(ctx, []model.SeatID{a1, a2}, "h2")
	if !errors.Is(err, model.ErrHoldMismatch) || !model.IsInternal(err) {
		t.Fatalf("expected internal ErrHoldMismatch, got %v", err)
	}
	if err := inv.Commit(ctx, []model.SeatID{a1, b1}, "h1"); !errors.Is(err, model.ErrHoldMismatch) {
		t.Fatalf("expected ErrHoldMismatch for unheld seat, got %v", err)
	}
	if stateOf(t, inv, a1) != model.SeatHeld {
		t.Fatal("mismatched commit must not touch a1")
	}

	if err := inv.Commit(ctx, []model.SeatID{a1, a2}, "h1"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := inv.Release(ctx, []model.SeatID{a1}, "h1"); !errors.Is(err, model.ErrHoldMismatch) {
		t.Fatalf("sold seat cannot be released, got %v", err)
	}
	snap, _ := inv.Snapshot()
	if snap.Sold != 2 || snap.Available != 1 || snap.Held != 0 {
		t.Fatalf("unexpected counts %+v", snap)
	}
}

type flakyStore struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (s *flakyStore) InitSeats(context.Context, string, []model.Seat) error { return nil }

func (s *flakyStore) SaveSeatStates(context.Context, string, []SeatRecord) error {
	s.calls.Add(1)
	if s.fail.Load() {
		return errors.New("connection reset")
	}
	return nil
}

func TestStoreFailureRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &flakyStore{}
	inv := newInventory(t, WithStore(store))
	if err := inv.TryReserve(ctx, []model.SeatID{b1}, "h1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	store.fail.Store(true)
	if err := inv.TryReserve(ctx, []model.SeatID{a1, a2}, "h2"); err == nil {
		t.Fatal("expected store error")
	}
	if stateOf(t, inv, a1) != model.SeatAvailable || stateOf(t, inv, a2) != model.SeatAvailable {
		t.Fatal("failed write must leave seats available")
	}
	if err := inv.Commit(ctx, []model.SeatID{b1}, "h1"); err == nil {
		t.Fatal("expected store error")
	}
	if st, holder, _ := inv.StateOf(b1); st != model.SeatHeld || holder != "h1" {
		t.Fatalf("failed commit must leave b1 held by h1, got %s/%s", st, holder)
	}
	if store.calls.Load() != 3 {
		t.Fatalf("expected 3 writes, got %d", store.calls.Load())
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	inv := newInventory(t)
	err := inv.Restore([]SeatRecord{
		{ID: a1, State: model.SeatSold},
		{ID: b1, State: model.SeatHeld, HoldID: "h9"},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if stateOf(t, inv, a1) != model.SeatSold {
		t.Fatal("a1 should be sold")
	}
	if err := inv.Release(context.Background(), []model.SeatID{b1}, "h9"); err != nil {
		t.Fatalf("restored hold should own b1: %v", err)
	}
}

// Many goroutines race for overlapping pairs of one row.  Every seat must
// end up held by exactly one winner and no two winners may share a seat.
func TestConcurrentOverlappingReserves(t *testing.T) {
	t.Parallel()

	const seats = 40
	m, err := model.BuildSeatMap("evt-race", []model.RowLayout{{Label: "A", Seats: seats, Tier: model.TierNormal}},
		model.TierPrices{model.TierNormal: 1000})
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	inv := New(WithStripes(8))
	if err := inv.Initialize(context.Background(), m); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners = map[string][]model.SeatID{}
	)
	for g := 0; g < 200; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			n := uint32(g%(seats-1)) + 1
			ids := []model.SeatID{{Row: "A", Number: n + 1}, {Row: "A", Number: n}}
			holdID := fmt.Sprintf("h%d", g)
			if err := inv.TryReserve(context.Background(), ids, holdID); err != nil {
				if !errors.Is(err, model.ErrSeatUnavailable) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			winners[holdID] = ids
			mu.Unlock()
		}(g)
	}
	wg.Wait()

	owner := map[model.SeatID]string{}
	for holdID, ids := range winners {
		for _, id := range ids {
			if prev, ok := owner[id]; ok {
				t.Fatalf("seat %s won by both %s and %s", id, prev, holdID)
			}
			owner[id] = holdID
			if _, holder, _ := inv.StateOf(id); holder != holdID {
				t.Fatalf("seat %s held by %q, want %q", id, holder, holdID)
			}
		}
	}
	snap, _ := inv.Snapshot()
	if snap.Held != len(owner) || snap.Available != seats-len(owner) {
		t.Fatalf("counts %+v do not match %d winners", snap, len(owner))
	}
}

// Disjoint reserves, releases and commits interleaved with snapshots never
// expose a torn pair.
func TestSnapshotIsConsistent(t *testing.T) {
	t.Parallel()

	m, err := model.BuildSeatMap("evt-snap", []model.RowLayout{{Seats: 20, Tier: model.TierVIP}, {Seats: 20, Tier: model.TierVIP}},
		model.TierPrices{model.TierVIP: 1})
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	inv := New()
	if err := inv.Initialize(context.Background(), m); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for n := uint32(1); n <= 20; n++ {
		wg.Add(1)
		go func(n uint32) {
			defer wg.Done()
			ids := []model.SeatID{{Row: "A", Number: n}, {Row: "B", Number: n}}
			holdID := fmt.Sprintf("h%d", n)
			for i := 0; i < 50; i++ {
				if err := inv.TryReserve(context.Background(), ids, holdID); err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				if err := inv.Release(context.Background(), ids, holdID); err != nil {
					t.Errorf("release: %v", err)
					return
				}
			}
		}(n)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap, err := inv.Snapshot()
			if err != nil {
				t.Errorf("snapshot: %v", err)
				return
			}
			if snap.Held%2 != 0 {
				t.Errorf("torn snapshot: %d held", snap.Held)
				return
			}
		}
	}()
	wg.Wait()
	close(stop)
	<-done
}
