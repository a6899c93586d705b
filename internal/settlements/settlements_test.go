package settlements

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

func ngn(minor int64) money.Money { return money.New(minor, enums.CurrencyNGN) }

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		total, fee, vendor int64
		rate               string
	}{
		{total: 5000, rate: "10", fee: 500, vendor: 4500},
		{total: 4999, rate: "10", fee: 500, vendor: 4499},
		{total: 1001, rate: "7.5", fee: 76, vendor: 925},
		{total: 0, rate: "10", fee: 0, vendor: 0},
		{total: 300, rate: "0", fee: 0, vendor: 300},
		{total: 300, rate: "100", fee: 300, vendor: 0},
	}
	for _, tc := range tests {
		split, err := ComputeSplit(ngn(tc.total), decimal.RequireFromString(tc.rate))
		require.NoError(t, err)
		assert.Equal(t, tc.fee, split.PlatformFee.Amount, "fee for %d @ %s", tc.total, tc.rate)
		assert.Equal(t, tc.vendor, split.VendorAmount.Amount)
		assert.Equal(t, tc.total, split.PlatformFee.Amount+split.VendorAmount.Amount)
	}

	_, err := ComputeSplit(ngn(-1), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, money.ErrNegativeAmount)
}

func TestRecordIsUniquePerOrder(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), "wallet")
	require.NoError(t, err)
	ctx := context.Background()

	order := &models.Order{ID: uuid.New(), VendorID: uuid.New(), Currency: enums.CurrencyNGN}
	split, err := ComputeSplit(ngn(5000), decimal.NewFromInt(10))
	require.NoError(t, err)

	row, err := svc.Record(ctx, conn, RecordInput{Order: order, Split: split, TransactionID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), row.TotalAmount)
	assert.Equal(t, int64(500), row.PlatformFee)
	assert.Equal(t, int64(4500), row.VendorAmount)
	assert.Equal(t, "wallet", row.PaymentGateway)

	_, err = svc.Record(ctx, conn, RecordInput{Order: order, Split: split})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	loaded, err := svc.ForOrder(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, row.ID, loaded.ID)

	bad := split
	bad.VendorAmount = ngn(4000)
	_, err = svc.Record(ctx, conn, RecordInput{Order: &models.Order{ID: uuid.New(), Currency: enums.CurrencyNGN}, Split: bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch))
}
