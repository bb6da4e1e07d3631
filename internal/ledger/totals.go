package ledger

import (
	"fmt"

	"github.com/govalues/decimal"
)

// Totals are the derived balances of a state. They are recomputed on demand
// and never stored next to the state they were computed from.
type Totals struct {
	PricePerKm  decimal.Decimal
	KmBy        map[ParticipantID]int64
	AmountBy    map[ParticipantID]decimal.Decimal
	TotalKm     int64
	TotalAmount decimal.Decimal
}

// TotalsOf computes per-participant and overall distance and cost for st.
func TotalsOf(pair Pair, st State) (Totals, error) {
	t := Totals{
		PricePerKm: st.PricePerKm,
		KmBy:       make(map[ParticipantID]int64, 2),
		AmountBy:   make(map[ParticipantID]decimal.Decimal, 2),
	}
	for _, id := range pair.IDs() {
		km := st.KmBy[id]
		amt, err := kmCost(km, st.PricePerKm)
		if err != nil {
			return Totals{}, fmt.Errorf("amount for %s: %w", id, err)
		}
		t.KmBy[id] = km
		t.AmountBy[id] = amt
		t.TotalKm += km
	}
	total, err := kmCost(t.TotalKm, st.PricePerKm)
	if err != nil {
		return Totals{}, fmt.Errorf("total amount: %w", err)
	}
	t.TotalAmount = total
	return t, nil
}

func kmCost(km int64, price decimal.Decimal) (decimal.Decimal, error) {
	d, err := decimal.New(km, 0)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.Mul(price)
}
