package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken through DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on one session across processes sharing
// a checkpoint store. Lock waits until key is free or ctx ends; the lock
// lapses on its own after ttl if the holder dies without unlocking.
type DistributedLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
