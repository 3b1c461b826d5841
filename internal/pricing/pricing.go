// Package pricing computes the price of a seat selection from the tier
// prices recorded in a seat map.  It holds no state and is safe for
// concurrent use.
package pricing

import (
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// Price sums the price of every seat in seatIDs.  It fails with a
// *model.UnknownSeatError listing every id that is not in the map.
func Price(seatMap *model.SeatMap, seatIDs []model.SeatID) (model.Cents, error) {
	q, err := Quote(seatMap, seatIDs)
	if err != nil {
		return 0, err
	}
	return q.TotalCents, nil
}

// TierLine is the subtotal for one tier of a quote.
type TierLine struct {
	Tier          model.Tier  `json:"tier"`
	Seats         int         `json:"seats"`
	UnitCents     model.Cents `json:"unit_cents"`
	SubtotalCents model.Cents `json:"subtotal_cents"`
}

// Quotation is a price preview broken down per tier.  Lines follow the
// order in which each tier first appears in the selection.
type Quotation struct {
	TotalCents model.Cents `json:"total_cents"`
	Lines      []TierLine  `json:"lines"`
}

// Quote prices seatIDs and reports a per-tier breakdown.  Seats of the same
// tier with different prices produce separate lines.
func Quote(seatMap *model.SeatMap, seatIDs []model.SeatID) (Quotation, error) {
	if missing := seatMap.Missing(seatIDs); len(missing) > 0 {
		return Quotation{}, &model.UnknownSeatError{Seats: missing}
	}
	type key struct {
		tier  model.Tier
		price model.Cents
	}
	var q Quotation
	pos := make(map[key]int)
	for _, id := range seatIDs {
		seat, _ := seatMap.Lookup(id)
		k := key{tier: seat.Tier, price: seat.PriceCents}
		i, ok := pos[k]
		if !ok {
			i = len(q.Lines)
			pos[k] = i
			q.Lines = append(q.Lines, TierLine{Tier: seat.Tier, UnitCents: seat.PriceCents})
		}
		q.Lines[i].Seats++
		q.Lines[i].SubtotalCents += seat.PriceCents
		q.TotalCents += seat.PriceCents
	}
	return q, nil
}
