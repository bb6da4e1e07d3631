package fuel

import (
	"context"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

// Store persists the single ledger state row and its history.
type Store interface {
	// LoadState returns the state with its history in ascending time order.
	// A missing row is reported as errs.ErrStoreUnavailable wrapping errs.ErrNotFound.
	LoadState(ctx context.Context) (ledger.State, error)
	// SaveState overwrites the state row. History is written separately.
	SaveState(ctx context.Context, st ledger.State) error
	// AppendHistoryEntry inserts e unless a record with its id exists.
	AppendHistoryEntry(ctx context.Context, e ledger.Entry) error
	// RemoveHistoryEntry deletes the record with id if present.
	RemoveHistoryEntry(ctx context.Context, id string) error
}

// TxStore groups writes so history and state change together or not at all.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
