package inventory

import (
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// SeatStatus is one row of a snapshot.
type SeatStatus struct {
	ID         model.SeatID
	Tier       model.Tier
	PriceCents model.Cents
	State      model.SeatState
	HoldID     string
}

// Snapshot is a point-in-time copy of every seat state, for display only.
// Decisions must go through TryReserve, Release and Commit.
type Snapshot struct {
	EventID   string
	Seats     []SeatStatus
	Available int
	Held      int
	Sold      int
}

// Snapshot locks every stripe, copies the table in seat map order and
// unlocks.  No transition is observed half applied.
func (inv *Inventory) Snapshot() (Snapshot, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if inv.seatMap == nil {
		return Snapshot{}, ErrNotInitialized
	}
	for i := range inv.stripes {
		inv.stripes[i].Lock()
	}
	defer func() {
		for i := len(inv.stripes) - 1; i >= 0; i-- {
			inv.stripes[i].Unlock()
		}
	}()

	seats := inv.seatMap.Seats()
	snap := Snapshot{EventID: inv.seatMap.EventID(), Seats: make([]SeatStatus, len(seats))}
	for i, s := range seats {
		sl := inv.slots[s.ID]
		snap.Seats[i] = SeatStatus{ID: s.ID, Tier: s.Tier, PriceCents: s.PriceCents, State: sl.state, HoldID: sl.holdID}
		switch sl.state {
		case model.SeatAvailable:
			snap.Available++
		case model.SeatHeld:
			snap.Held++
		case model.SeatSold:
			snap.Sold++
		}
	}
	return snap, nil
}

// StateOf returns the current state of one seat and, when Held, its owning
// hold id.
func (inv *Inventory) StateOf(id model.SeatID) (model.SeatState, string, error) {
	unlock, err := inv.lock([]model.SeatID{id})
	if err != nil {
		return "", "", err
	}
	defer unlock()
	sl := inv.slots[id]
	return sl.state, sl.holdID, nil
}
