package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"gorm.io/gorm"
)

const defaultRetention = 30 * 24 * time.Hour

type outboxPurger interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the housekeeping purge of relayed outbox rows
// and read in-app notifications.
type RetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Outbox        outboxPurger
	Notifications notificationPurger
	Retention     time.Duration
}

func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	case params.Notifications == nil:
		return nil, fmt.Errorf("notifications repository required")
	}
	return &retentionJob{
		logg:          params.Logger,
		db:            params.DB,
		outbox:        params.Outbox,
		notifications: params.Notifications,
		retention:     durationOrDefault(params.Retention, defaultRetention),
		now:           time.Now,
	}, nil
}

type retentionJob struct {
	logg          *logger.Logger
	db            txRunner
	outbox        outboxPurger
	notifications notificationPurger
	retention     time.Duration
	now           func() time.Time
}

func (j *retentionJob) Name() string { return "retention-purge" }

func (j *retentionJob) Run(ctx context.Context) (Report, error) {
	cutoff := j.now().UTC().Add(-j.retention)

	var outboxRows int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeletePublishedBefore(tx, cutoff)
		outboxRows = n
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("outbox retention: %w", err)
	}

	notificationRows, err := j.notifications.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return Report{Swept: int(outboxRows)}, fmt.Errorf("notification retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":                cutoff,
		"outbox_deleted":        outboxRows,
		"notifications_deleted": notificationRows,
	}), "retention purge complete")
	return Report{Swept: int(outboxRows + notificationRows)}, nil
}
