package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier is the pricing category a seat belongs to.  Tiers are free-form
// configuration values; VIP and NORMAL are the ones every venue template
// ships with.
type Tier string

const (
	TierVIP    Tier = "VIP"
	TierNormal Tier = "NORMAL"
)

// ParseTier normalises a tier name to its canonical upper-case form.
func ParseTier(s string) (Tier, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if t == "" {
		return "", fmt.Errorf("empty tier")
	}
	return Tier(t), nil
}

// SeatState is the availability of a seat for one event instance.
type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatHeld      SeatState = "HELD"
	SeatSold      SeatState = "SOLD"
)

// Cents is a monetary amount in the smallest currency unit.
type Cents int64

// String renders the amount with two decimals, e.g. 25000 -> "250.00".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// SeatID identifies a seat within a venue by its row label and seat number.
// The wire form is the row label immediately followed by the number, e.g.
// "A1" or "AB12".
type SeatID struct {
	Row    string // seats.row_label, upper-case ASCII letters
	Number uint32 // seats.seat_number, 1-based within the row
}

func (id SeatID) String() string {
	return id.Row + strconv.FormatUint(uint64(id.Number), 10)
}

// Valid reports whether the row label is non-empty upper-case ASCII and the
// number is positive.
func (id SeatID) Valid() bool {
	if id.Row == "" || id.Number == 0 {
		return false
	}
	for i := 0; i < len(id.Row); i++ {
		if id.Row[i] < 'A' || id.Row[i] > 'Z' {
			return false
		}
	}
	return true
}

// ParseSeatID parses the wire form of a seat identity.  Row labels are
// case-insensitive.
func ParseSeatID(s string) (SeatID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(s) {
		return SeatID{}, fmt.Errorf("invalid seat id %q", s)
	}
	n, err := strconv.ParseUint(s[i:], 10, 32)
	if err != nil || n == 0 {
		return SeatID{}, fmt.Errorf("invalid seat number in %q", s)
	}
	return SeatID{Row: s[:i], Number: uint32(n)}, nil
}

// ParseSeatIDs parses every element of raw, stopping at the first invalid
// entry.
func ParseSeatIDs(raw []string) ([]SeatID, error) {
	out := make([]SeatID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseSeatID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// SeatIDStrings converts ids to their wire form.
func SeatIDStrings(ids []SeatID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Seat describes a physical seat of a venue as it appears in a seat map.
// Seats are uniquely identified by their row label and seat number.
//
// Fields:
//
//	ID         – row label and seat number.
//	Tier       – pricing category (VIP, NORMAL, ...).
//	PriceCents – base price of the seat for the event.
type Seat struct {
	ID         SeatID // event_seats.row_label + event_seats.seat_number
	Tier       Tier   // event_seats.tier
	PriceCents Cents  // event_seats.price_cents
}
