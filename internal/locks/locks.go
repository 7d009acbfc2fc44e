// Package locks serializes work per user so that two updates from the same
// person never interleave their read-modify-write sequences.
package locks

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the lock could not be taken within the wait budget.
var ErrLockTimeout = errors.New("locks: timed out waiting for lock")

// Locker hands out exclusive per-key locks. The returned release func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key int64) (release func(), err error)
}

const (
	DefaultWait = 10 * time.Second
	DefaultTTL  = 30 * time.Second
)

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		wait = DefaultWait
	}
	return context.WithTimeout(ctx, wait)
}

func timeoutErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return ErrLockTimeout
}
