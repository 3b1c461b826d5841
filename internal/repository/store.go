package repository

import "database/sql"

// Store bundles the three repositories.  It satisfies inventory.Store,
// hold.Store, booking.BookingStore and booking.Loader.
type Store struct {
	*SeatStateRepo
	*HoldRepo
	*BookingRepo
	db *sql.DB
}

// NewStore returns a Store bound to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		SeatStateRepo: NewSeatStateRepo(db),
		HoldRepo:      NewHoldRepo(db),
		BookingRepo:   NewBookingRepo(db),
		db:            db,
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }
