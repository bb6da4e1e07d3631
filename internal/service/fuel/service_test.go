package fuel_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/locale"
	"github.com/tinoosan/fuelsplit/internal/lock"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
	"github.com/tinoosan/fuelsplit/internal/storage/memory"
)

const (
	alice ledger.ParticipantID = "alice"
	bob   ledger.ParticipantID = "bob"
)

func ptr[T any](v T) *T { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newService(t *testing.T, store fuel.TxStore) fuel.Service {
	t.Helper()
	pair, err := ledger.NewPair(
		ledger.Participant{ID: alice, Name: "Alice"},
		ledger.Participant{ID: bob, Name: "Bob"},
	)
	require.NoError(t, err)
	f, err := locale.New(locale.Options{Tag: "en-US", Currency: "EUR", TimeZone: "UTC"})
	require.NoError(t, err)

	e := ledger.NewEngine(pair, f)
	clock := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	seq := 0
	e.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	defaults := fuel.Defaults{PricePerKm: decimal.MustParse("0.25"), StartingOdometer: 0}
	return fuel.New(store, lock.NewMutex(), e, f, defaults, testLogger())
}

func TestService_Scenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store)
	require.NoError(t, svc.Bootstrap(ctx))

	v, err := svc.View(ctx)
	require.NoError(t, err)
	assert.True(t, v.AwaitingInitialReading)
	assert.False(t, v.CanUndo)

	res, err := svc.RecordReading(ctx, alice, 1000)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryTypeInit, res.Entry.Type)
	assert.False(t, res.View.AwaitingInitialReading)

	res, err = svc.RecordReading(ctx, bob, 1180)
	require.NoError(t, err)
	assert.Equal(t, alice, res.Entry.AttributedTo)
	assert.True(t, res.View.CanUndo)

	res, err = svc.RecordReading(ctx, alice, 1227)
	require.NoError(t, err)
	assert.Equal(t, int64(47), res.Entry.Delta())
	assert.Equal(t, "EUR", res.View.TotalAmount.Curr().Code())
	assert.True(t, res.View.TotalAmount.Decimal().Equal(decimal.MustParse("56.75")))
	assert.True(t, res.View.AmountBy[alice].Decimal().Equal(decimal.MustParse("45")))

	out, err := svc.Reset(ctx, bob)
	require.NoError(t, err)
	assert.Contains(t, out.Settlement.Message, "- Alice: 180 km")
	assert.Contains(t, out.Settlement.Message, "- Bob: 47 km")
	assert.Contains(t, out.Settlement.Message, "Odometer: 1,227 km")
	assert.Equal(t, int64(0), out.View.Totals.TotalKm)

	persisted, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, persisted.History, 4)
	assert.Equal(t, ledger.EntryTypeReset, persisted.History[3].Type)
	assert.Equal(t, int64(227), persisted.History[3].Snapshot.TotalKm)
	assert.Equal(t, int64(1227), persisted.StartingOdometer)

	hist, err := svc.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, ledger.EntryTypeReset, hist[0].Type)
	assert.Equal(t, int64(1227), *hist[1].Reading)
}

func TestService_BootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store)
	require.NoError(t, svc.Bootstrap(ctx))

	_, err := svc.UpdateSettings(ctx, alice, decimal.MustParse("0.31"), ptr(int64(5000)))
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap(ctx))

	st, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.True(t, st.PricePerKm.Equal(decimal.MustParse("0.31")))
	assert.Equal(t, int64(5000), st.StartingOdometer)
}

func TestService_UpdateSettingsKeepsStartWhenOmitted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store)
	require.NoError(t, svc.Bootstrap(ctx))

	_, err := svc.UpdateSettings(ctx, alice, decimal.MustParse("0.30"), ptr(int64(4200)))
	require.NoError(t, err)
	v, err := svc.UpdateSettings(ctx, bob, decimal.MustParse("0.40"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), v.State.StartingOdometer)
	assert.True(t, v.State.PricePerKm.Equal(decimal.MustParse("0.40")))

	st, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), st.StartingOdometer)
}

func TestService_RejectedOperationsPersistNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store)

	_, err := svc.RecordReading(ctx, alice, 500)
	require.NoError(t, err)
	before, err := store.LoadState(ctx)
	require.NoError(t, err)

	_, err = svc.RecordReading(ctx, bob, 499)
	assert.ErrorIs(t, err, errs.ErrInvalidReading)
	_, err = svc.UndoLast(ctx, bob)
	assert.ErrorIs(t, err, errs.ErrNothingToUndo)
	_, err = svc.UpdateSettings(ctx, bob, decimal.Zero, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidSettings)
	_, err = svc.RecordReading(ctx, "mallory", 900)
	assert.ErrorIs(t, err, errs.ErrUnknownParticipant)

	after, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_UndoRestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(t, store)

	_, err := svc.RecordReading(ctx, alice, 100)
	require.NoError(t, err)
	_, err = svc.RecordReading(ctx, bob, 150)
	require.NoError(t, err)
	before, err := store.LoadState(ctx)
	require.NoError(t, err)

	_, err = svc.RecordReading(ctx, alice, 190)
	require.NoError(t, err)
	res, err := svc.UndoLast(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(190), *res.Entry.Reading)

	after, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.KmBy, after.KmBy)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, *before.LastOdometer, *after.LastOdometer)
}

var errDisk = errors.New("disk full")

// flakyStore fails SaveState inside transactions once armed.
type flakyStore struct {
	*memory.Store
	failSave bool
	failLoad bool
}

func (f *flakyStore) LoadState(ctx context.Context) (ledger.State, error) {
	if f.failLoad {
		return ledger.State{}, errDisk
	}
	return f.Store.LoadState(ctx)
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(fuel.Store) error) error {
	return f.Store.WithTx(ctx, func(tx fuel.Store) error {
		return fn(flakyTx{Store: tx, fail: f.failSave})
	})
}

type flakyTx struct {
	fuel.Store
	fail bool
}

func (f flakyTx) SaveState(ctx context.Context, st ledger.State) error {
	if f.fail {
		return errDisk
	}
	return f.Store.SaveState(ctx, st)
}

func TestService_StoreFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New()}
	svc := newService(t, store)

	_, err := svc.RecordReading(ctx, alice, 100)
	require.NoError(t, err)
	before, err := store.Store.LoadState(ctx)
	require.NoError(t, err)

	store.failSave = true
	_, err = svc.RecordReading(ctx, bob, 140)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDisk)

	after, err := store.Store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	store.failSave = false
	res, err := svc.RecordReading(ctx, bob, 140)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.Entry.Delta())
}

func TestService_LoadFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(), failLoad: true}
	svc := newService(t, store)

	_, err := svc.View(ctx)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	_, err = svc.RecordReading(ctx, alice, 1)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context) (func(), error) {
	return nil, fmt.Errorf("%w: ledger busy", errs.ErrConflict)
}

func TestService_LockTimeout(t *testing.T) {
	pair, err := ledger.NewPair(ledger.Participant{ID: alice}, ledger.Participant{ID: bob})
	require.NoError(t, err)
	f, err := locale.New(locale.Options{})
	require.NoError(t, err)
	svc := fuel.New(memory.New(), busyLocker{}, ledger.NewEngine(pair, f), f, fuel.Defaults{PricePerKm: decimal.One}, testLogger())

	_, err = svc.RecordReading(context.Background(), alice, 1)
	assert.ErrorIs(t, err, errs.ErrConflict)
}
