package wallets

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
)

type fundingHarness struct {
	conn    *gorm.DB
	funding *FundingService
	wallets Service
	locker  *lock.MemoryLocker

	mu   sync.Mutex
	sent []notifications.Message
}

func newFundingHarness(t *testing.T) *fundingHarness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	walletSvc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	txnSvc, err := transactions.NewService(transactions.NewRepository(conn))
	require.NoError(t, err)

	h := &fundingHarness{conn: conn, wallets: walletSvc, locker: lock.NewMemoryLocker()}
	h.funding, err = NewFundingService(FundingParams{
		DB:           client,
		Wallets:      walletSvc,
		Transactions: txnSvc,
		Locker:       h.locker,
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logg),
		Notifier: notifications.NotifierFunc(func(_ context.Context, msgs ...notifications.Message) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent = append(h.sent, msgs...)
			return nil
		}),
		Logger:   logg,
		LockWait: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	return h
}

func TestNewFundingServiceRequiresDependencies(t *testing.T) {
	_, err := NewFundingService(FundingParams{})
	require.Error(t, err)
}

func TestFundingLifecycle(t *testing.T) {
	h := newFundingHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	pending, err := h.funding.InitiateFunding(ctx, userID, ngn(10000))
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, pending.Status)
	assert.Len(t, pending.Reference, 26)

	wallet, err := h.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, wallet.Balance)

	confirmed, err := h.funding.ConfirmFunding(ctx, pending.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccessful, confirmed.Status)
	require.NotNil(t, confirmed.WalletEntryID)

	wallet, err = h.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), wallet.Balance)
	require.NoError(t, h.wallets.VerifyBalance(ctx, nil, wallet.ID))

	var fee models.Transaction
	require.NoError(t, h.conn.Where("principal_transaction_id = ?", confirmed.ID).First(&fee).Error)
	assert.Equal(t, enums.TransactionFundWalletFee, fee.Type)
	assert.Zero(t, fee.Amount)

	var facts int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventLedgerFactRecorded, confirmed.ID).
		Count(&facts).Error)
	assert.Equal(t, int64(1), facts)

	require.Len(t, h.sent, 1)
	assert.Equal(t, enums.NotificationWalletFunded, h.sent[0].Kind)
	assert.Equal(t, userID, h.sent[0].Recipient.ID)

	again, err := h.funding.ConfirmFunding(ctx, pending.Reference)
	require.NoError(t, err)
	assert.Equal(t, confirmed.ID, again.ID)
	wallet, err = h.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), wallet.Balance)
	assert.Len(t, h.sent, 1)
}

func TestConfirmFailedFundingDoesNotCredit(t *testing.T) {
	h := newFundingHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	pending, err := h.funding.InitiateFunding(ctx, userID, ngn(700))
	require.NoError(t, err)

	failed, err := h.funding.FailStaleFunding(ctx, *pending)
	require.NoError(t, err)
	assert.True(t, failed)

	failed, err = h.funding.FailStaleFunding(ctx, *pending)
	require.NoError(t, err)
	assert.False(t, failed)

	current, err := h.funding.ConfirmFunding(ctx, pending.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusFailed, current.Status)

	wallet, err := h.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, wallet.Balance)
	assert.Empty(t, h.sent)
}

func TestConfirmFundingUnknownReference(t *testing.T) {
	h := newFundingHarness(t)
	_, err := h.funding.ConfirmFunding(context.Background(), "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmFundingLockContention(t *testing.T) {
	h := newFundingHarness(t)
	ctx := context.Background()

	pending, err := h.funding.InitiateFunding(ctx, uuid.New(), ngn(700))
	require.NoError(t, err)

	lease, err := h.locker.Obtain(ctx, lock.WalletKey(pending.WalletID.String()), time.Second, time.Minute)
	require.NoError(t, err)
	defer func() { _ = lease.Release(ctx) }()

	_, err = h.funding.ConfirmFunding(ctx, pending.Reference)
	assert.True(t, lock.IsContention(err))
}

func TestFailStaleFundingWaitsForWalletLock(t *testing.T) {
	h := newFundingHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	pending, err := h.funding.InitiateFunding(ctx, userID, ngn(700))
	require.NoError(t, err)

	lease, err := h.locker.Obtain(ctx, lock.WalletKey(pending.WalletID.String()), time.Second, time.Minute)
	require.NoError(t, err)
	_, err = h.funding.FailStaleFunding(ctx, *pending)
	assert.True(t, lock.IsContention(err))
	require.NoError(t, lease.Release(ctx))

	// the confirmation that held the lock wins; the late sweep is a no-op
	confirmed, err := h.funding.ConfirmFunding(ctx, pending.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccessful, confirmed.Status)

	failed, err := h.funding.FailStaleFunding(ctx, *pending)
	require.NoError(t, err)
	assert.False(t, failed)

	wallet, err := h.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), wallet.Balance)
}

func TestInitiateFundingRejectsNonPositiveAmount(t *testing.T) {
	h := newFundingHarness(t)
	_, err := h.funding.InitiateFunding(context.Background(), uuid.New(), ngn(0))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
