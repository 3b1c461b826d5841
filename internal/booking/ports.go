package booking

import (
	"context"
	"errors"

	"github.com/iliyamo/seat-reservation-engine/internal/inventory"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// ErrBookingNotFound is returned by a BookingStore without a booking for
// the requested hold.
var ErrBookingNotFound = errors.New("booking not found")

// Publisher announces state changes to other services.  Failures are
// logged by the caller and never undo the change.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, b model.Booking) error
	PublishHoldReleased(ctx context.Context, h model.Hold, reason string) error
}

// BookingStore persists bookings.
type BookingStore interface {
	SaveBooking(ctx context.Context, b model.Booking) error
	FindBookingByHold(ctx context.Context, holdID string) (model.Booking, error)
}

// Loader reads back everything needed to rebuild the registry after a
// restart.
type Loader interface {
	LoadSeatMaps(ctx context.Context) ([]*model.SeatMap, error)
	LoadSeatStates(ctx context.Context, eventID string) ([]inventory.SeatRecord, error)
	LoadHolds(ctx context.Context, eventID string) ([]model.Hold, error)
	LoadBookings(ctx context.Context, eventID string) ([]model.Booking, error)
}

type nopPublisher struct{}

func (nopPublisher) PublishBookingConfirmed(context.Context, model.Booking) error { return nil }

func (nopPublisher) PublishHoldReleased(context.Context, model.Hold, string) error { return nil }

type nopBookingStore struct{}

func (nopBookingStore) SaveBooking(context.Context, model.Booking) error { return nil }

func (nopBookingStore) FindBookingByHold(context.Context, string) (model.Booking, error) {
	return model.Booking{}, ErrBookingNotFound
}
