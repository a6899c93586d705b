package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

type fundingFailer interface {
	FailStaleFunding(ctx context.Context, txn models.Transaction) (bool, error)
}

// StaleFundingJobParams configure the stale-funding sweep.
type StaleFundingJobParams struct {
	Logger       *logger.Logger
	Transactions transactions.Service
	Funding      fundingFailer
	Grace        time.Duration
	BatchSize    int
}

// NewStaleFundingJob fails FUND_WALLET transactions whose processor callback
// never arrived.
func NewStaleFundingJob(params StaleFundingJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Transactions == nil:
		return nil, fmt.Errorf("transactions service required")
	case params.Funding == nil:
		return nil, fmt.Errorf("funding service required")
	case params.Grace <= 0:
		return nil, fmt.Errorf("grace window must be positive")
	}
	return &staleFundingJob{
		logg:    params.Logger,
		txns:    params.Transactions,
		funding: params.Funding,
		grace:   params.Grace,
		batch:   orDefault(params.BatchSize, defaultBatchSize),
		now:     time.Now,
	}, nil
}

type staleFundingJob struct {
	logg    *logger.Logger
	txns    transactions.Service
	funding fundingFailer
	grace   time.Duration
	batch   int
	now     func() time.Time
}

func (j *staleFundingJob) Name() string { return "stale-funding-sweep" }

func (j *staleFundingJob) Run(ctx context.Context) (Report, error) {
	cutoff := j.now().UTC().Add(-j.grace)
	stale, err := j.txns.ListStalePending(ctx, enums.TransactionFundWallet, cutoff, j.batch)
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(stale)}
	var errs error
	for _, txn := range stale {
		failed, err := j.funding.FailStaleFunding(ctx, txn)
		switch {
		case lock.IsContention(err):
			// a confirmation holds the wallet; the next run sees where it landed
			report.Skipped++
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("funding %s: %w", txn.Reference, err))
		case failed:
			report.Swept++
			j.logg.Info(j.logg.WithField(ctx, "reference", txn.Reference), "stale funding failed")
		default:
			report.Skipped++
		}
	}
	return report, errs
}
