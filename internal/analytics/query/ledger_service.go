package query

import (
	"context"
	"fmt"
	"strings"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"google.golang.org/api/iterator"
)

const (
	dailyTotalsSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(recorded_at)) AS day,
  fact,
  SUM(amount_minor) AS amount,
  COUNT(*) AS cnt
FROM %s
WHERE vendor_id = @vendor_id
  AND recorded_at BETWEEN @start AND @end
GROUP BY day, fact
ORDER BY day ASC, fact ASC
`

	settlementTotalsSQL = `
SELECT
  COALESCE(SUM(vendor_amount_minor), 0) AS settled,
  COALESCE(SUM(platform_fee_minor), 0) AS platform_fee
FROM %s
WHERE vendor_id = @vendor_id
  AND fact = 'settlement'
  AND recorded_at BETWEEN @start AND @end
`
)

// Querier is the read surface of pkg/bigquery.Client.
type Querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

// LedgerService summarizes ledger facts per vendor.
type LedgerService interface {
	Summary(ctx context.Context, req types.LedgerSummaryRequest) (*types.LedgerSummary, error)
}

type ledgerService struct {
	client Querier
	table  string
}

// NewLedgerService builds the summary reader for dataset.table.
func NewLedgerService(client Querier, dataset, table string) (LedgerService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	dataset = strings.TrimSpace(dataset)
	table = strings.TrimSpace(table)
	if dataset == "" || table == "" {
		return nil, fmt.Errorf("dataset and table are required")
	}
	return &ledgerService{client: client, table: fmt.Sprintf("`%s.%s`", dataset, table)}, nil
}

func (s *ledgerService) Summary(ctx context.Context, req types.LedgerSummaryRequest) (*types.LedgerSummary, error) {
	if err := validateSummaryRequest(req); err != nil {
		return nil, err
	}
	params := []cloudbigquery.QueryParameter{
		{Name: "vendor_id", Value: req.VendorID},
		{Name: "start", Value: req.Start.UTC()},
		{Name: "end", Value: req.End.UTC()},
	}

	daily, err := s.dailyTotals(ctx, params)
	if err != nil {
		return nil, err
	}
	settled, fees, err := s.settlementTotals(ctx, params)
	if err != nil {
		return nil, err
	}

	return &types.LedgerSummary{
		VendorID:         req.VendorID,
		Daily:            daily,
		SettledTotal:     settled,
		PlatformFeeTotal: fees,
	}, nil
}

func validateSummaryRequest(req types.LedgerSummaryRequest) error {
	if strings.TrimSpace(req.VendorID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if !req.End.After(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func (s *ledgerService) dailyTotals(ctx context.Context, params []cloudbigquery.QueryParameter) ([]types.DailyTotal, error) {
	it, err := s.client.Query(ctx, fmt.Sprintf(dailyTotalsSQL, s.table), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query daily ledger totals")
	}

	out := []types.DailyTotal{}
	for {
		var row struct {
			Day    string `bigquery:"day"`
			Fact   string `bigquery:"fact"`
			Amount int64  `bigquery:"amount"`
			Count  int64  `bigquery:"cnt"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read daily ledger totals")
		}
		out = append(out, types.DailyTotal{Date: row.Day, Fact: row.Fact, Amount: row.Amount, Count: row.Count})
	}
	return out, nil
}

func (s *ledgerService) settlementTotals(ctx context.Context, params []cloudbigquery.QueryParameter) (int64, int64, error) {
	it, err := s.client.Query(ctx, fmt.Sprintf(settlementTotalsSQL, s.table), params)
	if err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query settlement totals")
	}
	var row struct {
		Settled     int64 `bigquery:"settled"`
		PlatformFee int64 `bigquery:"platform_fee"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read settlement totals")
	}
	return row.Settled, row.PlatformFee, nil
}
