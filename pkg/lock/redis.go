package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// redisStore is the subset of pkg/redis.Client used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLocker implements Locker with SET NX PX and an owner-checked release.
type RedisLocker struct {
	client   redisStore
	interval time.Duration
}

func NewRedisLocker(client redisStore) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	return &RedisLocker{client: client, interval: defaultPollInterval}, nil
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, wait, ttl time.Duration) (Lease, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	owner := uuid.NewString()
	err := poll(ctx, key, wait, l.interval, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, key, owner, ttl)
		if err != nil {
			return false, fmt.Errorf("setnx %s: %w", key, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}
	return &redisLease{client: l.client, key: key, owner: owner}, nil
}

type redisLease struct {
	client redisStore
	key    string
	owner  string
}

func (l *redisLease) Key() string { return l.key }

// Release deletes the key only while this lease still owns it.
func (l *redisLease) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.DeleteIfValue(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}
