package ledger_test

import (
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

func TestRecord_ResetEntryRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	st := record(t, e, newTestState(t, "0.25"), alice, 10)
	st = record(t, e, st, bob, 30)
	_, settlement, err := e.Reset(st)
	require.NoError(t, err)

	rec, err := ledger.ToRecord(settlement.Entry)
	require.NoError(t, err)
	assert.Nil(t, rec.Reading)
	assert.Nil(t, rec.AttributedTo)
	assert.JSONEq(t, `{"kmBy":{"alice":20,"bob":0},"pricePerKm":"0.25","totalKm":20,"totalAmount":"5.00"}`, string(rec.Snapshot))

	back, err := rec.Entry()
	require.NoError(t, err)
	require.NotNil(t, back.Snapshot)
	assert.True(t, back.Snapshot.TotalAmount.Equal(decimal.MustParse("5")))
	assert.Equal(t, int64(20), back.Snapshot.KmBy[alice])
	assert.Equal(t, settlement.Entry.Timestamp, back.Timestamp)
}

func TestRecord_RejectsUnknownType(t *testing.T) {
	_, err := ledger.Record{ID: "x", Type: "bogus", Timestamp: time.Now().UnixMilli()}.Entry()
	assert.Error(t, err)
}

func TestKmByCodec(t *testing.T) {
	b, err := ledger.MarshalKmBy(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	m, err := ledger.UnmarshalKmBy([]byte(`{"alice":5}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), m[alice])

	m, err = ledger.UnmarshalKmBy(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}
