package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type ServiceParams struct {
	Logger    *logger.Logger
	Lifecycle runner
	Analytics runner
	Deps      map[string]pinger
	Gatherer  prometheus.Gatherer
	// MetricsAddr serves /metrics when set.
	MetricsAddr string
}

// Service runs the lifecycle consumer and the ledger facts worker side by
// side. Either one stopping with an error stops the other.
type Service struct {
	logg        *logger.Logger
	lifecycle   runner
	analytics   runner
	deps        map[string]pinger
	gatherer    prometheus.Gatherer
	metricsAddr string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Lifecycle == nil {
		return nil, errors.New("lifecycle consumer is required")
	}
	if params.Analytics == nil {
		return nil, errors.New("analytics worker is required")
	}
	return &Service{
		logg:        params.Logger,
		lifecycle:   params.Lifecycle,
		analytics:   params.Analytics,
		deps:        params.Deps,
		gatherer:    params.Gatherer,
		metricsAddr: params.MetricsAddr,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if err := pingDependency(ctx, s.logg, name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.lifecycle.Run(gctx)
	})
	g.Go(func() error {
		return s.analytics.Run(gctx)
	})
	if s.gatherer != nil && s.metricsAddr != "" {
		g.Go(func() error {
			return s.serveMetrics(gctx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "worker stopped unexpectedly", err)
	}
	return err
}

func (s *Service) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: s.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}
