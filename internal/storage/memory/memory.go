// Package memory provides an in-memory ledger store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
)

// data is everything the store holds. It is copied wholesale for transactions.
type data struct {
	state   *ledger.State // without history
	history []ledger.Entry
	byID    map[string]struct{}
}

func (d data) clone() data {
	out := data{
		history: make([]ledger.Entry, len(d.history)),
		byID:    make(map[string]struct{}, len(d.byID)),
	}
	if d.state != nil {
		st := d.state.Clone()
		out.state = &st
	}
	copy(out.history, d.history)
	for k := range d.byID {
		out.byID[k] = struct{}{}
	}
	return out
}

// Store is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu sync.RWMutex
	d  data
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{d: data{byID: map[string]struct{}{}}}
}

// Ready always succeeds.
func (s *Store) Ready(context.Context) error { return nil }

func (s *Store) LoadState(context.Context) (ledger.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.load()
}

func (s *Store) SaveState(_ context.Context, st ledger.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.save(st)
	return nil
}

func (s *Store) AppendHistoryEntry(_ context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.append(e)
}

func (s *Store) RemoveHistoryEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.remove(id)
	return nil
}

// WithTx runs fn against a staged copy and publishes it only if fn succeeds.
// Writers are excluded for the duration.
func (s *Store) WithTx(ctx context.Context, fn func(fuel.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := &txStore{d: s.d.clone()}
	if err := fn(staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d = staged.d
	return nil
}

// txStore operates on staged data; the parent store's lock is held.
type txStore struct {
	d data
}

func (t *txStore) LoadState(context.Context) (ledger.State, error) { return t.d.load() }

func (t *txStore) SaveState(_ context.Context, st ledger.State) error {
	t.d.save(st)
	return nil
}

func (t *txStore) AppendHistoryEntry(_ context.Context, e ledger.Entry) error {
	return t.d.append(e)
}

func (t *txStore) RemoveHistoryEntry(_ context.Context, id string) error {
	t.d.remove(id)
	return nil
}

func (d *data) load() (ledger.State, error) {
	if d.state == nil {
		return ledger.State{}, fmt.Errorf("%w: %w: ledger state", errs.ErrStoreUnavailable, errs.ErrNotFound)
	}
	st := d.state.Clone()
	st.History = make([]ledger.Entry, len(d.history))
	for i, e := range d.history {
		st.History[i] = e.Clone()
	}
	return st, nil
}

func (d *data) save(st ledger.State) {
	cp := st.Clone()
	cp.History = nil
	d.state = &cp
}

// append inserts e keeping history ascending by timestamp; equal timestamps
// keep insertion order.
func (d *data) append(e ledger.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: entry id required", errs.ErrInvalid)
	}
	if _, ok := d.byID[e.ID]; ok {
		return nil
	}
	if d.byID == nil {
		d.byID = map[string]struct{}{}
	}
	e = e.Clone()
	i := sort.Search(len(d.history), func(i int) bool {
		return d.history[i].Timestamp.After(e.Timestamp)
	})
	d.history = append(d.history, ledger.Entry{})
	copy(d.history[i+1:], d.history[i:])
	d.history[i] = e
	d.byID[e.ID] = struct{}{}
	return nil
}

func (d *data) remove(id string) {
	if _, ok := d.byID[id]; !ok {
		return
	}
	for i := range d.history {
		if d.history[i].ID == id {
			d.history = append(d.history[:i], d.history[i+1:]...)
			break
		}
	}
	delete(d.byID, id)
}

var _ fuel.TxStore = (*Store)(nil)
