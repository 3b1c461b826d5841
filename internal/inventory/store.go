package inventory

import (
	"context"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// SeatRecord is the persisted state of one seat.  HoldID is set only while
// the seat is Held.
type SeatRecord struct {
	ID     model.SeatID
	State  model.SeatState
	HoldID string
}

// Store is the durable side of the inventory.  Every transition is written
// through before the call returns; a failed write undoes the in-memory
// change.
//
// Methods:
//
//	InitSeats      – create the rows of a freshly initialized event.  Must
//	                 leave existing rows untouched so a restart can
//	                 initialize again and then Restore.
//	SaveSeatStates – persist one atomic batch of transitions.
type Store interface {
	InitSeats(ctx context.Context, eventID string, seats []model.Seat) error
	SaveSeatStates(ctx context.Context, eventID string, changes []SeatRecord) error
}

type nopStore struct{}

func (nopStore) InitSeats(context.Context, string, []model.Seat) error { return nil }

func (nopStore) SaveSeatStates(context.Context, string, []SeatRecord) error { return nil }
