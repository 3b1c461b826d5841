package model

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestParseSeatID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    SeatID
		wantErr bool
	}{
		{in: "A1", want: SeatID{Row: "A", Number: 1}},
		{in: " b12 ", want: SeatID{Row: "B", Number: 12}},
		{in: "AA7", want: SeatID{Row: "AA", Number: 7}},
		{in: "A0", wantErr: true},
		{in: "12", wantErr: true},
		{in: "A", wantErr: true},
		{in: "A1B", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSeatID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if got.String() != tt.want.String() {
				t.Fatalf("expected wire form %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBuildSeatMap(t *testing.T) {
	t.Parallel()

	m, err := BuildSeatMap("evt-1", []RowLayout{
		{Seats: 2, Tier: TierVIP},
		{Seats: 1, Tier: TierNormal},
	}, TierPrices{TierVIP: 25000, TierNormal: 15000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 seats, got %d", m.Len())
	}
	seat, ok := m.Lookup(SeatID{Row: "B", Number: 1})
	if !ok {
		t.Fatalf("expected B1 in map")
	}
	if seat.Tier != TierNormal || seat.PriceCents != 15000 {
		t.Fatalf("unexpected seat %+v", seat)
	}
	missing := m.Missing([]SeatID{{Row: "A", Number: 2}, {Row: "C", Number: 1}})
	if !reflect.DeepEqual(missing, []SeatID{{Row: "C", Number: 1}}) {
		t.Fatalf("unexpected missing seats %v", missing)
	}

	t.Run("missing tier price", func(t *testing.T) {
		_, err := BuildSeatMap("evt-1", []RowLayout{{Seats: 1, Tier: "BALCONY"}}, TierPrices{})
		if err == nil {
			t.Fatalf("expected error for unpriced tier")
		}
	})

	t.Run("duplicate seats", func(t *testing.T) {
		_, err := NewSeatMap("evt-1", []Seat{
			{ID: SeatID{Row: "A", Number: 1}, Tier: TierVIP},
			{ID: SeatID{Row: "A", Number: 1}, Tier: TierVIP},
		})
		if err == nil {
			t.Fatalf("expected duplicate seat error")
		}
	})
}

func TestRowLabel(t *testing.T) {
	t.Parallel()

	for i, want := range map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"} {
		if got := RowLabel(i); got != want {
			t.Errorf("RowLabel(%d) = %s, want %s", i, got, want)
		}
	}
}

func TestSortSeatIDs(t *testing.T) {
	t.Parallel()

	ids := []SeatID{{"AA", 1}, {"B", 1}, {"A", 10}, {"A", 2}}
	SortSeatIDs(ids)
	want := []SeatID{{"A", 2}, {"A", 10}, {"B", 1}, {"AA", 1}}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("begin hold: %w", &SeatUnavailableError{Seats: []SeatID{{"A", 2}}})
	if !errors.Is(err, ErrSeatUnavailable) {
		t.Fatalf("expected wrapped error to match ErrSeatUnavailable")
	}
	var sue *SeatUnavailableError
	if !errors.As(err, &sue) || len(sue.Seats) != 1 {
		t.Fatalf("expected SeatUnavailableError detail, got %v", err)
	}
	if err.Error() != "begin hold: seat unavailable: A2" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsInternal(&HoldMismatchError{Seat: SeatID{"A", 1}, HoldID: "h"}) {
		t.Fatalf("expected hold mismatch to be internal")
	}
	if IsInternal(&PaymentFailedError{Reason: "declined"}) {
		t.Fatalf("payment failure is not internal")
	}
}

func TestCentsString(t *testing.T) {
	t.Parallel()

	for c, want := range map[Cents]string{0: "0.00", 25000: "250.00", 1999: "19.99", -5: "-0.05"} {
		if got := c.String(); got != want {
			t.Errorf("Cents(%d).String() = %s, want %s", c, got, want)
		}
	}
}
