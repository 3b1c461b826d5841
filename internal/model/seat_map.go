package model

import (
	"fmt"
	"sort"
)

// SeatMap is the read-only description of the seats sold for one event.  It
// is generated once when the event is registered and never mutated
// afterwards, so it is safe to share between goroutines.
type SeatMap struct {
	eventID string
	seats   []Seat
	index   map[SeatID]int
}

// NewSeatMap validates seats and builds a SeatMap for eventID.  Seat
// identities must be valid and unique and prices must not be negative.
func NewSeatMap(eventID string, seats []Seat) (*SeatMap, error) {
	if eventID == "" {
		return nil, fmt.Errorf("seat map: event id is required")
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("seat map: no seats")
	}
	m := &SeatMap{
		eventID: eventID,
		seats:   make([]Seat, len(seats)),
		index:   make(map[SeatID]int, len(seats)),
	}
	copy(m.seats, seats)
	for i, s := range m.seats {
		if !s.ID.Valid() {
			return nil, fmt.Errorf("seat map: invalid seat id %q", s.ID)
		}
		if s.Tier == "" {
			return nil, fmt.Errorf("seat map: seat %s has no tier", s.ID)
		}
		if s.PriceCents < 0 {
			return nil, fmt.Errorf("seat map: seat %s has a negative price", s.ID)
		}
		if _, dup := m.index[s.ID]; dup {
			return nil, fmt.Errorf("seat map: duplicate seat %s", s.ID)
		}
		m.index[s.ID] = i
	}
	return m, nil
}

// EventID returns the event the map was generated for.
func (m *SeatMap) EventID() string { return m.eventID }

// Len returns the number of seats.
func (m *SeatMap) Len() int { return len(m.seats) }

// Seats returns a copy of the seats in map order.
func (m *SeatMap) Seats() []Seat {
	out := make([]Seat, len(m.seats))
	copy(out, m.seats)
	return out
}

// Lookup returns the seat with the given identity.
func (m *SeatMap) Lookup(id SeatID) (Seat, bool) {
	i, ok := m.index[id]
	if !ok {
		return Seat{}, false
	}
	return m.seats[i], true
}

// Contains reports whether id is part of the map.
func (m *SeatMap) Contains(id SeatID) bool {
	_, ok := m.index[id]
	return ok
}

// Missing returns the ids that are not part of the map, in input order.
func (m *SeatMap) Missing(ids []SeatID) []SeatID {
	var out []SeatID
	for _, id := range ids {
		if !m.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// RowLayout describes one row of a venue template.  When Label is empty the
// row label is generated from the row's position (A, B, ..., Z, AA, ...).
type RowLayout struct {
	Label string
	Seats int
	Tier  Tier
}

// TierPrices maps a tier to the price of one seat in that tier.
type TierPrices map[Tier]Cents

// BuildSeatMap generates the seat map of an event from a row layout and the
// tier price table.  Seats are numbered from 1 within each row.
func BuildSeatMap(eventID string, rows []RowLayout, prices TierPrices) (*SeatMap, error) {
	var seats []Seat
	for i, r := range rows {
		if r.Seats <= 0 {
			return nil, fmt.Errorf("seat map: row %d has no seats", i)
		}
		label := r.Label
		if label == "" {
			label = RowLabel(i)
		}
		price, ok := prices[r.Tier]
		if !ok {
			return nil, fmt.Errorf("seat map: no price for tier %q", r.Tier)
		}
		for n := 1; n <= r.Seats; n++ {
			seats = append(seats, Seat{
				ID:         SeatID{Row: label, Number: uint32(n)},
				Tier:       r.Tier,
				PriceCents: price,
			})
		}
	}
	return NewSeatMap(eventID, seats)
}

// RowLabel converts a zero-based row index to an alphabetical label like A,
// B, ..., Z, AA, AB.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []byte{}
	for {
		res = append(res, byte('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// SortSeatIDs orders ids by row label length, row label and seat number so
// that A2 < A10 < B1 < AA1.
func SortSeatIDs(ids []SeatID) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if len(a.Row) != len(b.Row) {
			return len(a.Row) < len(b.Row)
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})
}
