package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketledger-backend/internal/orders"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 200
	defaultLockWait  = 5 * time.Second
	defaultLockTTL   = 10 * time.Second
)

// StaleOrderJobParams configure the stale-order sweep.
type StaleOrderJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Service
	Locker    lock.Locker
	Grace     time.Duration
	BatchSize int
	LockWait  time.Duration
	LockTTL   time.Duration
}

// NewStaleOrderJob fails PENDING orders that outlived the grace window.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case params.Locker == nil:
		return nil, fmt.Errorf("locker required")
	case params.Grace <= 0:
		return nil, fmt.Errorf("grace window must be positive")
	}
	return &staleOrderJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		locker: params.Locker,
		grace:  params.Grace,
		batch:  orDefault(params.BatchSize, defaultBatchSize),
		wait:   durationOrDefault(params.LockWait, defaultLockWait),
		ttl:    durationOrDefault(params.LockTTL, defaultLockTTL),
		now:    time.Now,
	}, nil
}

type staleOrderJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Service
	locker lock.Locker
	grace  time.Duration
	batch  int
	wait   time.Duration
	ttl    time.Duration
	now    func() time.Time
}

func (j *staleOrderJob) Name() string { return "stale-order-sweep" }

func (j *staleOrderJob) Run(ctx context.Context) (Report, error) {
	cutoff := j.now().UTC().Add(-j.grace)
	stale, err := j.orders.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(stale)}
	var errs error
	for _, order := range stale {
		swept, err := j.failOrder(ctx, order.ID, cutoff)
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		case swept:
			report.Swept++
		default:
			report.Skipped++
		}
	}
	return report, errs
}

// failOrder rechecks the order under its lock so a payment that lands
// between the scan and the update wins.
func (j *staleOrderJob) failOrder(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	key := lock.OrderKey(orderID.String())
	lease, err := j.locker.Obtain(ctx, key, j.wait, j.ttl)
	if err != nil {
		if lock.IsContention(err) {
			j.logg.Warn(j.logg.WithField(ctx, "lock_key", key), "cron.lock_contention")
			return false, nil
		}
		return false, err
	}
	defer func() {
		if relErr := lease.Release(ctx); relErr != nil {
			j.logg.Warn(j.logg.WithField(ctx, "lock_key", key), "lock release failed")
		}
	}()

	var swept bool
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := j.orders.Lock(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || !order.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := j.orders.MarkFailed(ctx, tx, order); err != nil {
			return err
		}
		swept = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if swept {
		j.logg.Info(j.logg.WithField(ctx, "order_id", orderID.String()), "stale order failed")
	}
	return swept, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOrDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
