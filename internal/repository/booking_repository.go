package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// BookingRepo provides data access to the bookings table.  A booking is
// written once and never updated.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, hold_id, event_id, requester_ref, seat_ids, total_cents, payment_ref, transaction_id, confirmed_at`

// SaveBooking inserts b.  A second booking for the same hold fails with
// ErrConflict.
func (r *BookingRepo) SaveBooking(ctx context.Context, b model.Booking) error {
	const q = `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.HoldID, b.EventID, b.RequesterRef, joinSeatIDs(b.SeatIDs), int64(b.TotalCents),
		b.PaymentRef, b.TransactionID, b.ConfirmedAt.UTC().Format(timeLayout),
	)
	if isDuplicate(err) {
		return fmt.Errorf("booking for hold %s: %w", b.HoldID, ErrConflict)
	}
	return err
}

// FindBookingByHold returns the booking created from holdID, or an error
// matching booking.ErrBookingNotFound.
func (r *BookingRepo) FindBookingByHold(ctx context.Context, holdID string) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE hold_id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, holdID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("hold %s: %w", holdID, booking.ErrBookingNotFound)
	}
	return b, err
}

// LoadBookings returns every booking of an event.
func (r *BookingRepo) LoadBookings(ctx context.Context, eventID string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = ? ORDER BY confirmed_at`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(s scanner) (model.Booking, error) {
	var (
		b       model.Booking
		seatIDs string
		total   int64
	)
	if err := s.Scan(&b.ID, &b.HoldID, &b.EventID, &b.RequesterRef, &seatIDs, &total, &b.PaymentRef, &b.TransactionID, &b.ConfirmedAt); err != nil {
		return model.Booking{}, err
	}
	ids, err := splitSeatIDs(seatIDs)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	b.SeatIDs = ids
	b.TotalCents = model.Cents(total)
	b.ConfirmedAt = b.ConfirmedAt.UTC()
	return b, nil
}
