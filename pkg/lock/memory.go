package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is a single-process Locker with TTL expiry.
type MemoryLocker struct {
	mu       sync.Mutex
	held     map[string]memoryEntry
	interval time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	owner   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:     make(map[string]memoryEntry),
		interval: 5 * time.Millisecond,
		now:      time.Now,
	}
}

func (l *MemoryLocker) Obtain(ctx context.Context, key string, wait, ttl time.Duration) (Lease, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	owner := uuid.NewString()
	err := poll(ctx, key, wait, l.interval, func() (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.now()
		if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
			return false, nil
		}
		l.held[key] = memoryEntry{owner: owner, expires: now.Add(ttl)}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &memoryLease{locker: l, key: key, owner: owner}, nil
}

// Held reports whether key is currently locked.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	return ok && l.now().Before(entry.expires)
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	owner  string
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if entry, ok := l.locker.held[l.key]; ok && entry.owner == l.owner {
		delete(l.locker.held, l.key)
	}
	return nil
}
