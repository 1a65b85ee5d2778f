package lock

import (
	"context"
	"errors"
)

// ErrNotObtained is returned when a lock is still held by someone else after the
// configured wait.
var ErrNotObtained = errors.New("lock not obtained")

type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes work on one key (a loan, batch or customer) across callers.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}
