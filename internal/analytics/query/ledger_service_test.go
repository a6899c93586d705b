package query

import (
	"context"
	"testing"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noQuery struct{ calls int }

func (q *noQuery) Query(context.Context, string, []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error) {
	q.calls++
	return nil, nil
}

func TestNewLedgerServiceValidation(t *testing.T) {
	_, err := NewLedgerService(nil, "proj.ds", "ledger_facts")
	assert.Error(t, err)
	_, err = NewLedgerService(&noQuery{}, " ", "ledger_facts")
	assert.Error(t, err)

	svc, err := NewLedgerService(&noQuery{}, "proj.ds", "ledger_facts")
	require.NoError(t, err)
	assert.Equal(t, "`proj.ds.ledger_facts`", svc.(*ledgerService).table)
}

func TestSummaryValidatesRequestBeforeQuerying(t *testing.T) {
	q := &noQuery{}
	svc, err := NewLedgerService(q, "proj.ds", "ledger_facts")
	require.NoError(t, err)

	now := time.Now()
	cases := []types.LedgerSummaryRequest{
		{Start: now.Add(-time.Hour), End: now},
		{VendorID: "v1", End: now},
		{VendorID: "v1", Start: now, End: now.Add(-time.Hour)},
	}
	for _, req := range cases {
		_, err := svc.Summary(context.Background(), req)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
	assert.Zero(t, q.calls)
}
