package hold

import (
	"context"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// Seats is the slice of the seat inventory a Manager drives.  It is
// satisfied by *inventory.Inventory.
type Seats interface {
	TryReserve(ctx context.Context, ids []model.SeatID, holdID string) error
	Release(ctx context.Context, ids []model.SeatID, holdID string) error
	Commit(ctx context.Context, ids []model.SeatID, holdID string) error
	StateOf(id model.SeatID) (model.SeatState, string, error)
}

// Store persists hold records.  SaveHold inserts or overwrites the record
// with the same id.
type Store interface {
	SaveHold(ctx context.Context, h model.Hold) error
}

type nopStore struct{}

func (nopStore) SaveHold(context.Context, model.Hold) error { return nil }
