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

	"github.com/angelmondragon/marketledger-backend/internal/app"
	"github.com/angelmondragon/marketledger-backend/internal/cron"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/pkg/config"
	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/metrics"
	"github.com/angelmondragon/marketledger-backend/pkg/migrate"
	"github.com/angelmondragon/marketledger-backend/pkg/pubsub"
	"github.com/angelmondragon/marketledger-backend/pkg/redis"
)

const lockKeyFormat = "ml:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient, pubsubClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, pubsubClient *pubsub.Client) (*cron.Service, error) {
	locker, err := app.NewLocker(cfg.FeatureFlags, redisClient)
	if err != nil {
		return nil, err
	}
	notifier, err := notifications.NewDefaultDispatcher(
		notifications.NewRepository(dbClient.DB()),
		pubsub.AdaptPublisher(pubsubClient.NotificationPublisher()),
	)
	if err != nil {
		return nil, err
	}
	services, err := app.New(app.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Locker:   locker,
		Notifier: notifier,
	})
	if err != nil {
		return nil, err
	}

	staleOrders, err := cron.NewStaleOrderJob(cron.StaleOrderJobParams{
		Logger:    logg,
		DB:        dbClient,
		Orders:    services.Orders,
		Locker:    locker,
		Grace:     cfg.Engine.ReconcileGrace,
		BatchSize: cfg.Engine.ReconcileBatchSize,
		LockWait:  cfg.Engine.LockWait,
		LockTTL:   cfg.Engine.LockTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("stale order job: %w", err)
	}
	staleFunding, err := cron.NewStaleFundingJob(cron.StaleFundingJobParams{
		Logger:       logg,
		Transactions: services.Transactions,
		Funding:      services.Funding,
		Grace:        cfg.Engine.ReconcileGrace,
		BatchSize:    cfg.Engine.ReconcileBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("stale funding job: %w", err)
	}
	retention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Outbox:        services.OutboxRepo,
		Notifications: services.NotificationsRepo,
		Retention:     cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}

	leader, err := cron.NewLeaderLock(locker, lockKey(cfg.App.Env), 0)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(staleOrders, staleFunding, retention),
		Lock:     leader,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Engine.ReconcileInterval,
	})
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
