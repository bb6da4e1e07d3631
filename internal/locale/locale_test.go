package locale

import (
	"strings"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

func TestFormatter_EnglishDollars(t *testing.T) {
	f, err := New(Options{Tag: "en-US", Currency: "USD", TimeZone: "UTC", Layout: "2006-01-02 15:04"})
	require.NoError(t, err)

	got := f.Money(decimal.MustParse("56.75"))
	assert.True(t, strings.HasSuffix(got, "56.75"), got)
	assert.Contains(t, got, "$")
	assert.Contains(t, f.Money(decimal.MustParse("45")), "45.00")
	assert.Equal(t, "1,227", f.Distance(1227))
	assert.Equal(t, "2025-03-01 08:04", f.DateTime(time.Date(2025, 3, 1, 8, 4, 0, 0, time.UTC)))
}

func TestFormatter_TimeZone(t *testing.T) {
	f, err := New(Options{TimeZone: "Europe/Berlin", Layout: "15:04"})
	require.NoError(t, err)
	assert.Equal(t, "09:00", f.DateTime(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))
}

func TestFormatter_Amount(t *testing.T) {
	f, err := New(Options{Currency: "JPY"})
	require.NoError(t, err)
	a, err := f.Amount(decimal.MustParse("12.6"))
	require.NoError(t, err)
	assert.Equal(t, "JPY", a.Curr().Code())
	assert.True(t, a.Decimal().Equal(decimal.MustParse("13")))
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Options{Currency: "NOPE"})
	assert.Error(t, err)
	_, err = New(Options{TimeZone: "Nowhere/Land"})
	assert.Error(t, err)
	_, err = New(Options{Tag: "!!"})
	assert.Error(t, err)
}

func TestFormatter_GermanSymbolAfterAmount(t *testing.T) {
	f, err := New(Options{Tag: "de-DE", Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "1.234,50 €", f.Money(decimal.MustParse("1234.5")))
}

func TestSymbolAfter(t *testing.T) {
	cases := map[string]bool{
		"en-US": false,
		"ja-JP": false,
		"de-DE": true,
		"de-AT": false,
		"fr-CA": true,
		"es-ES": true,
		"es-MX": false,
		"pt":    false,
		"pt-PT": true,
	}
	for tag, want := range cases {
		assert.Equal(t, want, symbolAfter(language.MustParse(tag)), tag)
	}
}

func TestFormatter_FallbackKeepsSymbolAndTwoDecimals(t *testing.T) {
	f, err := New(Options{Currency: "JPY"})
	require.NoError(t, err)
	got := f.fallback(decimal.MustParse("12.5"))
	assert.True(t, strings.HasPrefix(got, f.symbol), got)
	assert.True(t, strings.HasSuffix(got, "12.50"), got)
}

func TestFormatter_SettlementMessage(t *testing.T) {
	f, err := New(Options{})
	require.NoError(t, err)
	pair, err := ledger.NewPair(ledger.Participant{ID: "alice", Name: "Alice"}, ledger.Participant{ID: "bob", Name: "Bob"})
	require.NoError(t, err)
	e := ledger.NewEngine(pair, f)

	st := ledger.NewState(pair, decimal.MustParse("0.25"), 0)
	for _, step := range []struct {
		by      ledger.ParticipantID
		reading int64
	}{{"alice", 10000}, {"bob", 11180}, {"alice", 11227}} {
		st, _, err = e.RecordReading(st, step.by, step.reading)
		require.NoError(t, err)
	}
	_, out, err := e.Reset(st)
	require.NoError(t, err)

	assert.Contains(t, out.Message, "\nPrice per km: $0.25\n")
	assert.Contains(t, out.Message, "\n- Alice: 1180 km => $295.00\n")
	assert.Contains(t, out.Message, "\n- Bob: 47 km => $11.75\n")
	assert.Contains(t, out.Message, "\nTotal: 1227 km => $306.75\n")
	assert.Contains(t, out.Message, "\nOdometer: 11227 km\n")
}
