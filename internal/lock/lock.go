// Package lock provides keyed mutual exclusion for seat inventory writes.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be taken before the context ended
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work on a key. The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}
