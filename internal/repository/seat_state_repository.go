package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-reservation-engine/internal/inventory"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// SeatStateRepo provides data access to the event_seats table.  One row
// holds both the immutable seat map data of a seat (tier, price, position
// in the map) and its mutable state.
type SeatStateRepo struct {
	db *sql.DB
}

// NewSeatStateRepo returns a new SeatStateRepo bound to the provided database.
func NewSeatStateRepo(db *sql.DB) *SeatStateRepo { return &SeatStateRepo{db: db} }

// insertBatch bounds the number of rows per INSERT statement.
const insertBatch = 500

// InitSeats inserts one AVAILABLE row per seat.  Rows that already exist
// are left untouched (INSERT IGNORE), so re-initializing an event after a
// restart keeps its stored states.
func (r *SeatStateRepo) InitSeats(ctx context.Context, eventID string, seats []model.Seat) error {
	for start := 0; start < len(seats); start += insertBatch {
		end := start + insertBatch
		if end > len(seats) {
			end = len(seats)
		}
		query := `INSERT IGNORE INTO event_seats (event_id, row_label, seat_number, tier, price_cents, status, position) VALUES `
		args := make([]interface{}, 0, (end-start)*7)
		for i, s := range seats[start:end] {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?)"
			args = append(args, eventID, s.ID.Row, s.ID.Number, string(s.Tier), int64(s.PriceCents), string(model.SeatAvailable), start+i)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert event seats: %w", err)
		}
	}
	return nil
}

// SaveSeatStates applies one batch of transitions in a single transaction
// so that the stored table never shows half of a reserve or commit.
func (r *SeatStateRepo) SaveSeatStates(ctx context.Context, eventID string, changes []inventory.SeatRecord) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE event_seats SET status = ?, hold_id = ? WHERE event_id = ? AND row_label = ? AND seat_number = ?`
	for _, c := range changes {
		var holdID sql.NullString
		if c.HoldID != "" {
			holdID = sql.NullString{String: c.HoldID, Valid: true}
		}
		res, err := tx.ExecContext(ctx, q, string(c.State), holdID, eventID, c.ID.Row, c.ID.Number)
		if err != nil {
			return fmt.Errorf("update seat %s: %w", c.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update seat %s: no row for event %s", c.ID, eventID)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// LoadSeatStates returns the stored state of every seat of an event.
func (r *SeatStateRepo) LoadSeatStates(ctx context.Context, eventID string) ([]inventory.SeatRecord, error) {
	const q = `SELECT row_label, seat_number, status, hold_id FROM event_seats WHERE event_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.SeatRecord
	for rows.Next() {
		var (
			rec    inventory.SeatRecord
			status string
			holdID sql.NullString
		)
		if err := rows.Scan(&rec.ID.Row, &rec.ID.Number, &status, &holdID); err != nil {
			return nil, err
		}
		rec.State = model.SeatState(status)
		rec.HoldID = holdID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadSeatMaps rebuilds the seat map of every stored event.
func (r *SeatStateRepo) LoadSeatMaps(ctx context.Context) ([]*model.SeatMap, error) {
	const q = `SELECT event_id, row_label, seat_number, tier, price_cents FROM event_seats ORDER BY event_id, position`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		maps    []*model.SeatMap
		current string
		seats   []model.Seat
	)
	flush := func() error {
		if current == "" {
			return nil
		}
		m, err := model.NewSeatMap(current, seats)
		if err != nil {
			return err
		}
		maps = append(maps, m)
		return nil
	}
	for rows.Next() {
		var (
			eventID string
			s       model.Seat
			tier    string
			price   int64
		)
		if err := rows.Scan(&eventID, &s.ID.Row, &s.ID.Number, &tier, &price); err != nil {
			return nil, err
		}
		if eventID != current {
			if err := flush(); err != nil {
				return nil, err
			}
			current, seats = eventID, nil
		}
		s.Tier = model.Tier(strings.ToUpper(tier))
		s.PriceCents = model.Cents(price)
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return maps, nil
}
