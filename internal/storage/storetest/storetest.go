// Package storetest holds the behaviour every ledger store must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
)

// Run exercises a fresh, empty store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) fuel.TxStore) {
	t.Run("missing state", func(t *testing.T) { missingState(t, open(t)) })
	t.Run("state round trip", func(t *testing.T) { stateRoundTrip(t, open(t)) })
	t.Run("history semantics", func(t *testing.T) { historySemantics(t, open(t)) })
	t.Run("tx rollback", func(t *testing.T) { txRollback(t, open(t)) })
}

var (
	alice ledger.ParticipantID = "alice"
	bob   ledger.ParticipantID = "bob"
	base                       = time.Date(2025, time.May, 4, 10, 0, 0, 0, time.UTC)
)

func i64(v int64) *int64 { return &v }

func seedState() ledger.State {
	return ledger.State{
		Version:          ledger.CurrentVersion,
		PricePerKm:       decimal.MustParse("0.195"),
		StartingOdometer: 1000,
		LastOdometer:     i64(1227),
		KmBy:             map[ledger.ParticipantID]int64{alice: 180, bob: 47},
		LastEnteredBy:    alice,
	}
}

func missingState(t *testing.T, s fuel.TxStore) {
	_, err := s.LoadState(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func stateRoundTrip(t *testing.T, s fuel.TxStore) {
	ctx := context.Background()
	st := seedState()
	require.NoError(t, s.SaveState(ctx, st))
	// Idempotent overwrite.
	require.NoError(t, s.SaveState(ctx, st))

	got, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.CurrentVersion, got.Version)
	assert.True(t, got.PricePerKm.Equal(st.PricePerKm), "price %s", got.PricePerKm)
	assert.Equal(t, int64(1000), got.StartingOdometer)
	require.NotNil(t, got.LastOdometer)
	assert.Equal(t, int64(1227), *got.LastOdometer)
	assert.Equal(t, st.KmBy, got.KmBy)
	assert.Equal(t, alice, got.LastEnteredBy)
	assert.Empty(t, got.History)

	st.LastOdometer = nil
	st.LastEnteredBy = ""
	require.NoError(t, s.SaveState(ctx, st))
	got, err = s.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.LastOdometer)
	assert.Empty(t, got.LastEnteredBy)
}

func historySemantics(t *testing.T, s fuel.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SaveState(ctx, seedState()))

	init := ledger.Entry{ID: "e1", Type: ledger.EntryTypeInit, Timestamp: base, Reading: i64(1000), EnteredBy: alice, Note: ledger.NoteInitial}
	entry := ledger.Entry{ID: "e2", Type: ledger.EntryTypeEntry, Timestamp: base.Add(time.Minute), Reading: i64(1180), DeltaKm: i64(180), AttributedTo: alice, EnteredBy: bob}
	reset := ledger.Entry{ID: "e3", Type: ledger.EntryTypeReset, Timestamp: base.Add(2 * time.Minute), Note: ledger.NoteReset, Snapshot: &ledger.Snapshot{
		KmBy:        map[ledger.ParticipantID]int64{alice: 180, bob: 0},
		PricePerKm:  decimal.MustParse("0.25"),
		TotalKm:     180,
		TotalAmount: decimal.MustParse("45.00"),
	}}

	// Appended out of order; loads come back ascending.
	require.NoError(t, s.AppendHistoryEntry(ctx, entry))
	require.NoError(t, s.AppendHistoryEntry(ctx, init))
	require.NoError(t, s.AppendHistoryEntry(ctx, reset))
	// Insert-if-absent: a second write with the same id changes nothing.
	dup := entry
	dup.Note = "changed"
	require.NoError(t, s.AppendHistoryEntry(ctx, dup))

	got, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, got.History, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{got.History[0].ID, got.History[1].ID, got.History[2].ID})

	e := got.History[1]
	assert.Equal(t, ledger.EntryTypeEntry, e.Type)
	assert.True(t, e.Timestamp.Equal(entry.Timestamp))
	assert.Equal(t, int64(180), e.Delta())
	assert.Equal(t, alice, e.AttributedTo)
	assert.Equal(t, bob, e.EnteredBy)
	assert.Empty(t, e.Note)
	assert.Nil(t, e.Snapshot)

	r := got.History[2]
	assert.Nil(t, r.Reading)
	assert.Nil(t, r.DeltaKm)
	require.NotNil(t, r.Snapshot)
	assert.Equal(t, int64(180), r.Snapshot.TotalKm)
	assert.True(t, r.Snapshot.TotalAmount.Equal(decimal.MustParse("45")))
	assert.Equal(t, int64(180), r.Snapshot.KmBy[alice])

	// Delete-if-present.
	require.NoError(t, s.RemoveHistoryEntry(ctx, "e2"))
	require.NoError(t, s.RemoveHistoryEntry(ctx, "e2"))
	require.NoError(t, s.RemoveHistoryEntry(ctx, "missing"))
	got, err = s.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "e1", got.History[0].ID)
	assert.Equal(t, "e3", got.History[1].ID)
}

var errBoom = errors.New("boom")

func txRollback(t *testing.T, s fuel.TxStore) {
	ctx := context.Background()
	st := seedState()
	require.NoError(t, s.SaveState(ctx, st))

	err := s.WithTx(ctx, func(tx fuel.Store) error {
		if err := tx.AppendHistoryEntry(ctx, ledger.Entry{ID: "tx1", Type: ledger.EntryTypeInit, Timestamp: base, Reading: i64(5)}); err != nil {
			return err
		}
		changed := st.Clone()
		changed.StartingOdometer = 5
		if err := tx.SaveState(ctx, changed); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.History)
	assert.Equal(t, int64(1000), got.StartingOdometer)

	err = s.WithTx(ctx, func(tx fuel.Store) error {
		if err := tx.AppendHistoryEntry(ctx, ledger.Entry{ID: "tx2", Type: ledger.EntryTypeInit, Timestamp: base, Reading: i64(5)}); err != nil {
			return err
		}
		changed := st.Clone()
		changed.StartingOdometer = 5
		return tx.SaveState(ctx, changed)
	})
	require.NoError(t, err)
	got, err = s.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, int64(5), got.StartingOdometer)
}
