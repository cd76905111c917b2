package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a session lock. It must be called exactly once.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes the events of one session across replicas,
// so two widget requests for the same visitor never advance it concurrently.
// The in-process session manager still orders events within one replica.
type DistributedLocker interface {
	// Lock blocks until the lock on key is held or ctx is done. The lock
	// expires after ttl if the holder dies without releasing it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
