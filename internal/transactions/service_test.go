package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

func newTestService(t *testing.T) (*gorm.DB, Service) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return conn, svc
}

func testWallet() *models.Wallet {
	return &models.Wallet{ID: uuid.New(), UserID: uuid.New(), Currency: enums.CurrencyNGN}
}

func ngn(minor int64) money.Money { return money.New(minor, enums.CurrencyNGN) }

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestCreateSuccessfulAndFee(t *testing.T) {
	conn, svc := newTestService(t)
	ctx := context.Background()
	wallet := testWallet()

	principal, err := svc.CreateSuccessful(ctx, conn, CreateInput{
		Wallet:    wallet,
		Type:      enums.TransactionOrderPayment,
		Amount:    ngn(5000),
		Reference: "PAY-1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccessful, principal.Status)
	assert.Equal(t, int64(-5000), principal.SignedAmount())

	fee, err := svc.CreateSuccessfulFee(ctx, conn, principal, ngn(0))
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionOrderPaymentFee, fee.Type)
	assert.Equal(t, "PAY-1", fee.Reference)
	require.NotNil(t, fee.PrincipalTransactionID)
	assert.Equal(t, principal.ID, *fee.PrincipalTransactionID)

	loaded, err := svc.FeeFor(ctx, conn, principal.ID)
	require.NoError(t, err)
	assert.Equal(t, fee.ID, loaded.ID)

	_, err = svc.CreateSuccessfulFee(ctx, conn, principal, ngn(0))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.CreateSuccessfulFee(ctx, conn, fee, ngn(0))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateSuccessfulRejectsDuplicatesAndBadInput(t *testing.T) {
	conn, svc := newTestService(t)
	ctx := context.Background()
	wallet := testWallet()
	input := CreateInput{Wallet: wallet, Type: enums.TransactionOrderRefund, Amount: ngn(100), Reference: "REF-1"}

	_, err := svc.CreateSuccessful(ctx, conn, input)
	require.NoError(t, err)

	_, err = svc.CreateSuccessful(ctx, conn, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	cases := map[string]CreateInput{
		"fee type":        {Wallet: wallet, Type: enums.TransactionOrderRefundFee, Amount: ngn(1), Reference: "x"},
		"negative amount": {Wallet: wallet, Type: enums.TransactionOrderRefund, Amount: ngn(-1), Reference: "x"},
		"currency":        {Wallet: wallet, Type: enums.TransactionOrderRefund, Amount: money.New(1, enums.CurrencyUSD), Reference: "x"},
		"reference":       {Wallet: wallet, Type: enums.TransactionOrderRefund, Amount: ngn(1), Reference: "  "},
		"wallet":          {Type: enums.TransactionOrderRefund, Amount: ngn(1), Reference: "x"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSuccessful(ctx, conn, in)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestPendingTransitions(t *testing.T) {
	conn, svc := newTestService(t)
	ctx := context.Background()
	wallet := testWallet()

	txn, err := svc.CreatePending(ctx, conn, CreateInput{Wallet: wallet, Type: enums.TransactionFundWallet, Amount: ngn(700), Reference: "FUND-1"})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)

	require.NoError(t, svc.MarkSuccessful(ctx, conn, txn))
	assert.Equal(t, enums.TransactionStatusSuccessful, txn.Status)

	err = svc.MarkSuccessful(ctx, conn, txn)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	failed, err := svc.MarkFailed(ctx, conn, txn.ID)
	require.NoError(t, err)
	assert.False(t, failed)

	loaded, err := svc.FindByReference(ctx, conn, enums.TransactionFundWallet, "FUND-1")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccessful, loaded.Status)
}

func TestAttachWalletTransactionFor(t *testing.T) {
	conn, svc := newTestService(t)
	ctx := context.Background()
	wallet := testWallet()

	txn, err := svc.CreateSuccessful(ctx, conn, CreateInput{Wallet: wallet, Type: enums.TransactionOrderSettlement, Amount: ngn(4500), Reference: "SET-1"})
	require.NoError(t, err)

	entryID := uuid.New()
	require.NoError(t, svc.AttachWalletTransactionFor(ctx, conn, txn, wallet, entryID))
	require.NoError(t, svc.AttachWalletTransactionFor(ctx, conn, txn, wallet, entryID))

	err = svc.AttachWalletTransactionFor(ctx, conn, txn, wallet, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch))

	err = svc.AttachWalletTransactionFor(ctx, conn, txn, testWallet(), entryID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch))

	loaded, err := svc.FindByReference(ctx, conn, enums.TransactionOrderSettlement, "SET-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.WalletEntryID)
	assert.Equal(t, entryID, *loaded.WalletEntryID)
}

func TestListStalePendingAndLatest(t *testing.T) {
	conn, svc := newTestService(t)
	ctx := context.Background()
	wallet := testWallet()

	old := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, conn.Create(&models.Transaction{
		WalletID: wallet.ID, UserID: wallet.UserID, Type: enums.TransactionFundWallet,
		Status: enums.TransactionStatusPending, Amount: 100, Currency: enums.CurrencyNGN,
		Reference: "FUND-OLD", CreatedAt: old, UpdatedAt: old,
	}).Error)
	fresh, err := svc.CreatePending(ctx, conn, CreateInput{Wallet: wallet, Type: enums.TransactionFundWallet, Amount: ngn(200), Reference: "FUND-NEW"})
	require.NoError(t, err)

	stale, err := svc.ListStalePending(ctx, enums.TransactionFundWallet, time.Now().UTC().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "FUND-OLD", stale[0].Reference)

	latest, err := svc.LatestForWallet(ctx, conn, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, latest.ID)

	_, err = svc.LatestForWallet(ctx, conn, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
