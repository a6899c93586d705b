package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/marketledger-backend/pkg/lock"
)

const (
	defaultLeaderKey = "cron:leader"
	defaultLeaderTTL = 5 * time.Minute
)

// Lock coordinates exclusive cron runs across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LeaderLock holds the cron leader key through a lock.Locker. Acquire never
// waits: a replica that loses the race skips the cycle.
type LeaderLock struct {
	locker lock.Locker
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	lease lock.Lease
}

// NewLeaderLock constructs the leader lock. The ttl must outlive one cycle.
func NewLeaderLock(locker lock.Locker, key string, ttl time.Duration) (*LeaderLock, error) {
	if locker == nil {
		return nil, errors.New("locker required for leader lock")
	}
	if key == "" {
		key = defaultLeaderKey
	}
	if ttl <= 0 {
		ttl = defaultLeaderTTL
	}
	return &LeaderLock{locker: locker, key: key, ttl: ttl}, nil
}

func (l *LeaderLock) Acquire(ctx context.Context) (bool, error) {
	lease, err := l.locker.Obtain(ctx, l.key, 0, l.ttl)
	if err != nil {
		if lock.IsContention(err) {
			return false, nil
		}
		return false, err
	}
	l.mu.Lock()
	l.lease = lease
	l.mu.Unlock()
	return true, nil
}

func (l *LeaderLock) Release(ctx context.Context) error {
	l.mu.Lock()
	lease := l.lease
	l.lease = nil
	l.mu.Unlock()
	if lease == nil {
		return nil
	}
	return lease.Release(ctx)
}
