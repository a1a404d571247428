// Package lock serializes work on one accounting period. Ingestion and
// reconciliation of the same period must not interleave; different periods
// proceed in parallel.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finassist/internal/ledger"
)

// ErrNotObtained is returned when a lock could not be taken before the
// context ended or the retries ran out.
var ErrNotObtained = errors.New("lock not obtained")

// Release gives a held lock back. It is safe to call more than once.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// PeriodKey is the lock key for a period.
func PeriodKey(p ledger.Period) string {
	return "period:" + p.String()
}

// Local is an in-process Locker. Waiters give up when their context ends.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until key is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	const op = "Local.Acquire"

	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %s: %w: %v", op, key, ErrNotObtained, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
