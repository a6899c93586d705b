package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketledger-backend/internal/analytics"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/worker"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/writer"
	"github.com/angelmondragon/marketledger-backend/internal/app"
	"github.com/angelmondragon/marketledger-backend/internal/listeners"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/pkg/bigquery"
	"github.com/angelmondragon/marketledger-backend/pkg/config"
	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/metrics"
	"github.com/angelmondragon/marketledger-backend/pkg/migrate"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/registry"
	"github.com/angelmondragon/marketledger-backend/pkg/pubsub"
	"github.com/angelmondragon/marketledger-backend/pkg/redis"
	"github.com/angelmondragon/marketledger-backend/pkg/retry"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub client", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "error closing bigquery client", err)
		}
	}()

	locker, err := app.NewLocker(cfg.FeatureFlags, redisClient)
	requireResource(ctx, logg, "locker", err)

	notifier, err := notifications.NewDefaultDispatcher(
		notifications.NewRepository(dbClient.DB()),
		pubsub.AdaptPublisher(pubsubClient.NotificationPublisher()),
	)
	requireResource(ctx, logg, "notification dispatcher", err)

	services, err := app.New(app.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Locker:   locker,
		Notifier: notifier,
	})
	requireResource(ctx, logg, "services", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	backoff, err := cfg.Engine.BackoffSchedule()
	requireResource(ctx, logg, "retry backoff", err)
	policy, err := retry.NewPolicy(cfg.Engine.RetryMaxAttempts, backoff)
	requireResource(ctx, logg, "retry policy", err)

	handlers, err := services.Listeners()
	requireResource(ctx, logg, "lifecycle listeners", err)

	promRegistry := prometheus.NewRegistry()
	lifecycle, err := listeners.NewConsumer(listeners.ConsumerParams{
		Subscription: pubsubClient.OrdersSubscription(),
		Dispatcher:   listeners.NewDispatcher(handlers),
		Decoders:     registry.NewLifecycleDecoders(),
		Idempotency:  manager,
		DLQ:          outbox.NewDLQRepository(dbClient.DB()),
		Policy:       policy,
		Metrics:      metrics.NewListenerMetrics(promRegistry),
		Logger:       logg,
	})
	requireResource(ctx, logg, "lifecycle consumer", err)

	factWriter, err := writer.New(bqClient, writer.Config{LedgerFactsTable: bqClient.LedgerFactsTable()})
	requireResource(ctx, logg, "ledger facts writer", err)
	factHandler, err := analytics.NewLedgerFactHandler(factWriter)
	requireResource(ctx, logg, "ledger facts handler", err)
	ledgerWorker, err := worker.NewService(pubsubClient.LedgerSubscription(), factHandler, manager, logg)
	requireResource(ctx, logg, "ledger facts worker", err)

	service, err := NewService(ServiceParams{
		Logger:    logg,
		Lifecycle: lifecycle,
		Analytics: ledgerWorker,
		Deps: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
			"bigquery": bqClient,
		},
		Gatherer:    promRegistry,
		MetricsAddr: ":" + cfg.App.Port,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
