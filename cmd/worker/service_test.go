package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestServiceStopsBothRunnersWhenOneFails(t *testing.T) {
	boom := errors.New("subscription gone")
	stopped := make(chan struct{})
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "worker-test"}),
		Lifecycle: runnerFunc(func(context.Context) error { return boom }),
		Analytics: runnerFunc(func(ctx context.Context) error {
			defer close(stopped)
			return blockUntilDone(ctx)
		}),
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorIs(t, err, boom)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("analytics runner kept running")
	}
}

func TestServiceRefusesToStartWhenDependencyDown(t *testing.T) {
	started := false
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "worker-test"}),
		Lifecycle: runnerFunc(func(ctx context.Context) error {
			started = true
			return nil
		}),
		Analytics: runnerFunc(blockUntilDone),
		Deps: map[string]pinger{
			"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "redis ping failed")
	require.False(t, started)
}

func TestServiceReturnsCanceledOnShutdown(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "worker-test"}),
		Lifecycle: runnerFunc(blockUntilDone),
		Analytics: runnerFunc(blockUntilDone),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresRunners(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "worker-test"})})
	require.Error(t, err)
}
