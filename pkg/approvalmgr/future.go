package approvalmgr

import (
	"context"
	"sync"
)

// Future is a single-assignment result cell: exactly one of timeout or
// resolve completes it, and every caller of Wait observes the same value.
// This is the idiomatic Go substitute for a promise — a channel closed
// exactly once, guarded by sync.Once so a racing timer and resolve() can
// never double-complete it.
type Future struct {
	done     chan struct{}
	once     sync.Once
	decision *Decision
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete resolves the future. decision is nil for the timeout sentinel.
func (f *Future) complete(decision *Decision) {
	f.once.Do(func() {
		f.decision = decision
		close(f.done)
	})
}

// Wait blocks until the future completes or ctx is cancelled. A nil
// Decision with a nil error means the timeout sentinel fired.
func (f *Future) Wait(ctx context.Context) (*Decision, error) {
	select {
	case <-f.done:
		return f.decision, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
