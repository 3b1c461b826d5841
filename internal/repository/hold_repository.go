package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// HoldRepo provides data access to the holds table.  Seat ids are stored
// as a comma separated list of their wire form (A1,A2).
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a new HoldRepo bound to the given database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// SaveHold inserts the hold or overwrites its mutable columns (status and
// expiry) when it already exists.
func (r *HoldRepo) SaveHold(ctx context.Context, h model.Hold) error {
	const q = `INSERT INTO holds (id, event_id, requester_ref, seat_ids, total_cents, status, created_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE status = VALUES(status), expires_at = VALUES(expires_at)`
	_, err := r.db.ExecContext(ctx, q,
		h.ID, h.EventID, h.RequesterRef, joinSeatIDs(h.SeatIDs), int64(h.TotalCents), string(h.Status),
		h.CreatedAt.UTC().Format(timeLayout), h.ExpiresAt.UTC().Format(timeLayout),
	)
	return err
}

// LoadHolds returns every hold of an event.  Terminal holds are included so
// that a confirm retried after a restart can still be answered.
func (r *HoldRepo) LoadHolds(ctx context.Context, eventID string) ([]model.Hold, error) {
	const q = `SELECT id, event_id, requester_ref, seat_ids, total_cents, status, created_at, expires_at
               FROM holds WHERE event_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Hold
	for rows.Next() {
		var (
			h       model.Hold
			seatIDs string
			total   int64
			status  string
		)
		if err := rows.Scan(&h.ID, &h.EventID, &h.RequesterRef, &seatIDs, &total, &status, &h.CreatedAt, &h.ExpiresAt); err != nil {
			return nil, err
		}
		if h.SeatIDs, err = splitSeatIDs(seatIDs); err != nil {
			return nil, fmt.Errorf("hold %s: %w", h.ID, err)
		}
		h.TotalCents = model.Cents(total)
		h.Status = model.HoldStatus(status)
		h.CreatedAt = h.CreatedAt.UTC()
		h.ExpiresAt = h.ExpiresAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteFinishedBefore removes terminal holds that expired before cutoff
// and returns how many rows were deleted.  Committed holds are kept while
// their booking exists.
func (r *HoldRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM holds WHERE status IN ('EXPIRED','RELEASED') AND expires_at < ?`
	res, err := r.db.ExecContext(ctx, q, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func joinSeatIDs(ids []model.SeatID) string {
	return strings.Join(model.SeatIDStrings(ids), ",")
}

func splitSeatIDs(s string) ([]model.SeatID, error) {
	if s == "" {
		return nil, nil
	}
	return model.ParseSeatIDs(strings.Split(s, ","))
}
