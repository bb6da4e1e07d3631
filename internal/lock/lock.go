// Package lock serializes ledger mutations within and across instances.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/tinoosan/fuelsplit/internal/errs"
)

// Locker grants exclusive access to the ledger. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Mutex is a process-local Locker that honours context cancellation.
type Mutex struct {
	ch   chan struct{}
	wait time.Duration
}

func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

// NewMutexWait returns a Mutex that gives up after wait even when ctx has no deadline.
func NewMutexWait(wait time.Duration) *Mutex {
	return &Mutex{ch: make(chan struct{}, 1), wait: wait}
}

func (m *Mutex) Lock(ctx context.Context) (func(), error) {
	if m.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}
	select {
	case m.ch <- struct{}{}:
		return func() { <-m.ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: ledger busy: %v", errs.ErrConflict, ctx.Err())
	}
}
