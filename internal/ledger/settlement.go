package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/govalues/decimal"
)

// Formatter renders the locale-dependent parts of the settlement message.
// Distances in the message are always plain integers.
type Formatter interface {
	Money(amount decimal.Decimal) string
	DateTime(t time.Time) string
}

// DefaultSymbol is what PlainFormatter prints when no symbol is set.
const DefaultSymbol = "$"

// PlainFormatter renders without locale data: a symbol-prefixed
// two-decimal amount and RFC 3339 timestamps. It is also the fallback
// when locale formatting fails.
type PlainFormatter struct {
	Symbol string
}

func (p PlainFormatter) Money(amount decimal.Decimal) string {
	sym := p.Symbol
	if sym == "" {
		sym = DefaultSymbol
	}
	return sym + amount.Round(2).Pad(2).String()
}

func (PlainFormatter) DateTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// Settlement is the outcome of a reset: the frozen record, the pre-reset
// totals and the message the caller delivers.
type Settlement struct {
	Entry   Entry
	Message string
	Totals  Totals
}

// SettlementInput carries the pre-reset values the message is built from.
type SettlementInput struct {
	At           time.Time
	Pair         Pair
	Totals       Totals
	LastOdometer *int64
}

// FormatSettlement builds the multi-line settlement summary.
func FormatSettlement(in SettlementInput, f Formatter) string {
	if f == nil {
		f = PlainFormatter{}
	}
	var b strings.Builder
	b.WriteString("Fuel split reset (" + f.DateTime(in.At) + ")\n")
	b.WriteString("Price per km: " + f.Money(in.Totals.PricePerKm) + "\n")
	b.WriteString("Totals since last reset:\n")
	for _, p := range []Participant{in.Pair.A, in.Pair.B} {
		b.WriteString("- " + displayName(p) + ": " + km(in.Totals.KmBy[p.ID]) + " km => " + f.Money(in.Totals.AmountBy[p.ID]) + "\n")
	}
	b.WriteString("Total: " + km(in.Totals.TotalKm) + " km => " + f.Money(in.Totals.TotalAmount) + "\n")
	if in.LastOdometer != nil {
		b.WriteString("Odometer: " + km(*in.LastOdometer) + " km\n")
	}
	b.WriteString("Please settle accordingly.")
	return b.String()
}

func km(v int64) string { return strconv.FormatInt(v, 10) }

func displayName(p Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}
