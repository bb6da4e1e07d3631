package ledger_test

import (
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

type euroFormatter struct{}

func (euroFormatter) Money(d decimal.Decimal) string { return "€" + d.Round(2).Pad(2).String() }
func (euroFormatter) DateTime(t time.Time) string    { return t.Format("2006-01-02 15:04") }

func TestReset_SettlementMessage(t *testing.T) {
	e := newTestEngine(t)
	e.Formatter = euroFormatter{}
	st := newTestState(t, "0.25")
	st = record(t, e, st, alice, 1000)
	st = record(t, e, st, bob, 1180)
	st = record(t, e, st, alice, 1227)

	_, settlement, err := e.Reset(st)
	require.NoError(t, err)

	want := "Fuel split reset (2025-03-01 08:04)\n" +
		"Price per km: €0.25\n" +
		"Totals since last reset:\n" +
		"- Alice: 180 km => €45.00\n" +
		"- Bob: 47 km => €11.75\n" +
		"Total: 227 km => €56.75\n" +
		"Odometer: 1227 km\n" +
		"Please settle accordingly."
	assert.Equal(t, want, settlement.Message)
	assert.Equal(t, int64(227), settlement.Totals.TotalKm)
}

func TestFormatSettlement_OmitsOdometerWhenUnset(t *testing.T) {
	pair := testPair(t)
	totals, err := ledger.TotalsOf(pair, ledger.NewState(pair, decimal.MustParse("0.5"), 0))
	require.NoError(t, err)

	msg := ledger.FormatSettlement(ledger.SettlementInput{
		At:     time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
		Pair:   pair,
		Totals: totals,
	}, nil)

	want := "Fuel split reset (2025-01-02T03:04:05Z)\n" +
		"Price per km: $0.50\n" +
		"Totals since last reset:\n" +
		"- Alice: 0 km => $0.00\n" +
		"- Bob: 0 km => $0.00\n" +
		"Total: 0 km => $0.00\n" +
		"Please settle accordingly."
	assert.Equal(t, want, msg)
}

func TestFormatSettlement_FallsBackToID(t *testing.T) {
	pair, err := ledger.NewPair(ledger.Participant{ID: "a"}, ledger.Participant{ID: "b", Name: "Bea"})
	require.NoError(t, err)
	totals, err := ledger.TotalsOf(pair, ledger.NewState(pair, decimal.MustParse("1"), 0))
	require.NoError(t, err)

	msg := ledger.FormatSettlement(ledger.SettlementInput{Pair: pair, Totals: totals}, ledger.PlainFormatter{})
	assert.Contains(t, msg, "\n- a: 0 km")
	assert.Contains(t, msg, "\n- Bea: 0 km")
}

func TestPlainFormatter_Money(t *testing.T) {
	assert.Equal(t, "$12.50", ledger.PlainFormatter{}.Money(decimal.MustParse("12.5")))
	assert.Equal(t, "¥13.00", ledger.PlainFormatter{Symbol: "¥"}.Money(decimal.MustParse("12.996")))
}

func TestFormatSettlement_DistancesAreNotGrouped(t *testing.T) {
	pair := testPair(t)
	st := ledger.NewState(pair, decimal.MustParse("0.25"), 0)
	st.KmBy[alice] = 1180
	st.KmBy[bob] = 47
	totals, err := ledger.TotalsOf(pair, st)
	require.NoError(t, err)
	odo := int64(11227)

	msg := ledger.FormatSettlement(ledger.SettlementInput{Pair: pair, Totals: totals, LastOdometer: &odo}, euroFormatter{})
	assert.Contains(t, msg, "\n- Alice: 1180 km => €295.00\n")
	assert.Contains(t, msg, "\nTotal: 1227 km => €306.75\n")
	assert.Contains(t, msg, "\nOdometer: 11227 km\n")
}

func TestTotalsOf(t *testing.T) {
	pair := testPair(t)
	st := ledger.NewState(pair, decimal.MustParse("0.19"), 0)
	st.KmBy[alice] = 101
	st.KmBy[bob] = 7

	totals, err := ledger.TotalsOf(pair, st)
	require.NoError(t, err)
	assert.Equal(t, int64(108), totals.TotalKm)
	assert.True(t, totals.AmountBy[alice].Equal(decimal.MustParse("19.19")))
	assert.True(t, totals.AmountBy[bob].Equal(decimal.MustParse("1.33")))
	assert.True(t, totals.TotalAmount.Equal(decimal.MustParse("20.52")))
}
