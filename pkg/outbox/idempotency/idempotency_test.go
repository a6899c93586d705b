package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data     map[string]string
	ttls     map[string]time.Duration
	getError error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getError != nil {
		return "", f.getError
	}
	return f.data[key], nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "ml:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestMarkThenIsProcessed(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	done, err := manager.IsProcessed(ctx, "listeners", eventID)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, manager.MarkProcessed(ctx, "listeners", eventID))

	key := "ml:idempotency:evt:processed:listeners:" + eventID.String()
	require.Equal(t, "1", store.data[key])
	require.Equal(t, 24*time.Hour, store.ttls[key])

	done, err = manager.IsProcessed(ctx, "listeners", eventID)
	require.NoError(t, err)
	require.True(t, done)

	other, err := manager.IsProcessed(ctx, "ledger-facts", eventID)
	require.NoError(t, err)
	require.False(t, other)
}

func TestDeleteClearsMark(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	require.NoError(t, manager.MarkProcessed(ctx, "listeners", eventID))
	require.NoError(t, manager.Delete(ctx, "listeners", eventID))

	done, err := manager.IsProcessed(ctx, "listeners", eventID)
	require.NoError(t, err)
	require.False(t, done)
}

func TestManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newFakeStore(), -time.Second)
	require.Error(t, err)

	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)
	require.Error(t, manager.MarkProcessed(context.Background(), "", uuid.New()))
	require.Error(t, manager.MarkProcessed(context.Background(), "listeners", uuid.Nil))
}

func TestIsProcessedPropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	store.getError = errors.New("boom")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.IsProcessed(context.Background(), "listeners", uuid.New())
	require.Error(t, err)
}
