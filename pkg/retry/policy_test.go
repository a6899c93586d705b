package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

func TestDelayRepeatsLastEntry(t *testing.T) {
	p, err := NewPolicy(5, []time.Duration{time.Second, 5 * time.Second, 10 * time.Second})
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), p.Delay(0))
	require.Equal(t, time.Second, p.Delay(1))
	require.Equal(t, 10*time.Second, p.Delay(3))
	require.Equal(t, 10*time.Second, p.Delay(7))
}

func TestNewPolicyValidates(t *testing.T) {
	_, err := NewPolicy(0, nil)
	require.Error(t, err)
	_, err = NewPolicy(1, []time.Duration{-time.Second})
	require.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(config.EngineConfig{RetryMaxAttempts: 3, RetryBackoff: "1s,5s,10s"})
	require.NoError(t, err)
	require.Equal(t, 3, p.MaxAttempts)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 10 * time.Second}, p.Backoff)
}

func TestDoRetriesRetryableUntilBudget(t *testing.T) {
	p, err := NewPolicy(3, []time.Duration{time.Millisecond})
	require.NoError(t, err)

	calls := 0
	contention := pkgerrors.New(pkgerrors.CodeLockContention, "busy")
	err = p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		require.Equal(t, calls, attempt)
		return contention
	})
	require.Equal(t, 3, calls)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeLockContention))
}

func TestDoStopsOnTerminalError(t *testing.T) {
	p, err := NewPolicy(5, []time.Duration{time.Millisecond})
	require.NoError(t, err)

	calls := 0
	err = p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "nope")
	})
	require.Equal(t, 1, calls)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	p, err := NewPolicy(3, []time.Duration{time.Millisecond})
	require.NoError(t, err)

	calls := 0
	err = p.Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
