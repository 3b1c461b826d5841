package pricing

import (
	"errors"
	"testing"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

func venue(t *testing.T) *model.SeatMap {
	t.Helper()
	m, err := model.NewSeatMap("evt-1", []model.Seat{
		{ID: model.SeatID{Row: "A", Number: 1}, Tier: model.TierVIP, PriceCents: 25000},
		{ID: model.SeatID{Row: "A", Number: 2}, Tier: model.TierVIP, PriceCents: 25000},
		{ID: model.SeatID{Row: "B", Number: 1}, Tier: model.TierNormal, PriceCents: 15000},
	})
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	return m
}

func TestPrice(t *testing.T) {
	t.Parallel()

	m := venue(t)
	a1 := model.SeatID{Row: "A", Number: 1}
	a2 := model.SeatID{Row: "A", Number: 2}
	b1 := model.SeatID{Row: "B", Number: 1}

	tests := []struct {
		name  string
		seats []model.SeatID
		want  model.Cents
	}{
		{name: "two vip seats", seats: []model.SeatID{a1, a2}, want: 50000},
		{name: "mixed tiers", seats: []model.SeatID{a1, b1}, want: 40000},
		{name: "empty selection", seats: nil, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Price(m, tt.seats)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPriceUnknownSeat(t *testing.T) {
	t.Parallel()

	_, err := Price(venue(t), []model.SeatID{{Row: "A", Number: 1}, {Row: "Z", Number: 9}})
	if !errors.Is(err, model.ErrUnknownSeat) {
		t.Fatalf("expected ErrUnknownSeat, got %v", err)
	}
	var use *model.UnknownSeatError
	if !errors.As(err, &use) || len(use.Seats) != 1 || use.Seats[0].String() != "Z9" {
		t.Fatalf("expected Z9 to be reported, got %v", err)
	}
}

func TestQuoteBreakdown(t *testing.T) {
	t.Parallel()

	q, err := Quote(venue(t), []model.SeatID{{Row: "B", Number: 1}, {Row: "A", Number: 1}, {Row: "A", Number: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TotalCents != 65000 {
		t.Fatalf("expected total 650.00, got %s", q.TotalCents)
	}
	if len(q.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(q.Lines))
	}
	if q.Lines[0].Tier != model.TierNormal || q.Lines[1].Seats != 2 || q.Lines[1].SubtotalCents != 50000 {
		t.Fatalf("unexpected lines %+v", q.Lines)
	}
}
