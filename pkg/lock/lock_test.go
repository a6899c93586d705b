package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.Obtain(ctx, "ml:lock:order:1", 0, time.Second)
	require.NoError(t, err)
	require.Equal(t, "ml:lock:order:1", lease.Key())

	_, err = locker.Obtain(ctx, "ml:lock:order:1", 20*time.Millisecond, time.Second)
	require.Error(t, err)
	require.True(t, IsContention(err))

	require.NoError(t, lease.Release(ctx))
	require.False(t, locker.Held("ml:lock:order:1"))

	again, err := locker.Obtain(ctx, "ml:lock:order:1", 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLockerWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.Obtain(ctx, "k", 0, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = lease.Release(ctx)
	}()

	second, err := locker.Obtain(ctx, "k", time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestMemoryLockerExpiredLeaseCannotReleaseNewOwner(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	now := time.Now()
	locker.now = func() time.Time { return now }

	stale, err := locker.Obtain(ctx, "k", 0, time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := locker.Obtain(ctx, "k", 0, time.Second)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	require.True(t, locker.Held("k"))
	require.NoError(t, fresh.Release(ctx))
}

func TestMemoryLockerSerializesConcurrentHolders(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Obtain(ctx, "shared", 2*time.Second, time.Second)
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			_ = lease.Release(ctx)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[key] != value {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func TestRedisLockerObtainAndRelease(t *testing.T) {
	ctx := context.Background()
	store := &fakeRedis{data: map[string]string{}}
	locker, err := NewRedisLocker(store)
	require.NoError(t, err)
	locker.interval = time.Millisecond

	lease, err := locker.Obtain(ctx, "ml:lock:checkout:u:cv", 0, 10*time.Second)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "ml:lock:checkout:u:cv", 5*time.Millisecond, 10*time.Second)
	require.True(t, IsContention(err))

	require.NoError(t, lease.Release(ctx))
	require.Empty(t, store.data)
	require.NoError(t, lease.Release(ctx))
}

func TestRedisLockerRejectsBadInput(t *testing.T) {
	_, err := NewRedisLocker(nil)
	require.Error(t, err)

	locker, err := NewRedisLocker(&fakeRedis{data: map[string]string{}})
	require.NoError(t, err)
	_, err = locker.Obtain(context.Background(), "", 0, time.Second)
	require.Error(t, err)
	_, err = locker.Obtain(context.Background(), "k", 0, 0)
	require.Error(t, err)
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "ml:lock:order:42", OrderKey("42"))
	require.Equal(t, "ml:lock:checkout:u1:cv9", CheckoutKey("u1", "cv9"))
	require.Equal(t, "ml:lock:checkout:cv9", Key("checkout", " ", "cv9"))
	require.Equal(t, "ml:lock:wallet:w1", WalletKey("w1"))
}
