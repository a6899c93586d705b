package wallets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// FundingParams wires the FUND_WALLET lifecycle.
type FundingParams struct {
	DB           txRunner
	Wallets      Service
	Transactions transactions.Service
	Locker       lock.Locker
	Outbox       outbox.Emitter
	Notifier     notifications.Notifier
	Logger       *logger.Logger
	LockWait     time.Duration
	LockTTL      time.Duration
}

// FundingService tops wallets up from an external payment processor. The
// processor callback is assumed verified by the time ConfirmFunding runs.
type FundingService struct {
	db       txRunner
	wallets  Service
	txns     transactions.Service
	locker   lock.Locker
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
	wait     time.Duration
	ttl      time.Duration
}

func NewFundingService(params FundingParams) (*FundingService, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Wallets == nil:
		return nil, fmt.Errorf("wallets service required")
	case params.Transactions == nil:
		return nil, fmt.Errorf("transactions service required")
	case params.Locker == nil:
		return nil, fmt.Errorf("locker required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	wait, ttl := params.LockWait, params.LockTTL
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &FundingService{
		db:       params.DB,
		wallets:  params.Wallets,
		txns:     params.Transactions,
		locker:   params.Locker,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     params.Logger,
		wait:     wait,
		ttl:      ttl,
	}, nil
}

// InitiateFunding records a PENDING FUND_WALLET row whose reference is handed
// to the payment processor.
func (s *FundingService) InitiateFunding(ctx context.Context, userID uuid.UUID, amount money.Money) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "funding amount must be positive")
	}
	var txn *models.Transaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.wallets.EnsureWallet(ctx, tx, userID, amount.Currency)
		if err != nil {
			return err
		}
		txn, err = s.txns.CreatePending(ctx, tx, transactions.CreateInput{
			Wallet:      wallet,
			Type:        enums.TransactionFundWallet,
			Amount:      amount,
			Reference:   ulid.Make().String(),
			Description: "wallet funding",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "reference": txn.Reference})
	s.logg.Info(logCtx, "wallet funding initiated")
	return txn, nil
}

// ConfirmFunding credits the wallet for a PENDING funding. Confirming a row
// that already succeeded or failed returns it unchanged.
func (s *FundingService) ConfirmFunding(ctx context.Context, reference string) (*models.Transaction, error) {
	txn, err := s.txns.FindByReference(ctx, nil, enums.TransactionFundWallet, reference)
	if err != nil {
		return nil, err
	}
	if txn.Status.IsTerminal() {
		return txn, nil
	}

	lease, err := s.locker.Obtain(ctx, lock.WalletKey(txn.WalletID.String()), s.wait, s.ttl)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "lock_key", lease.Key()), "wallet lock release failed")
		}
	}()

	credited := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.txns.FindByReference(ctx, tx, enums.TransactionFundWallet, reference)
		if err != nil {
			return err
		}
		txn = current
		if current.Status.IsTerminal() {
			return nil
		}

		amount := money.New(current.Amount, current.Currency)
		wallet := &models.Wallet{ID: current.WalletID}
		entry, err := s.wallets.Deposit(ctx, tx, wallet, amount, current.Reference)
		if err != nil {
			return err
		}
		if err := s.wallets.VerifyLatestEntry(ctx, tx, wallet, amount); err != nil {
			return err
		}
		if err := s.txns.MarkSuccessful(ctx, tx, current); err != nil {
			return err
		}
		fee, err := s.txns.CreateSuccessfulFee(ctx, tx, current, money.Zero(current.Currency))
		if err != nil {
			return err
		}
		if err := s.txns.AttachWalletTransactionFor(ctx, tx, current, wallet, entry.ID); err != nil {
			return err
		}
		credited = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerFactRecorded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   current.ID,
			Data: payloads.LedgerFactEvent{
				Fact:            payloads.FactFunding,
				TransactionID:   current.ID,
				TransactionType: current.Type,
				WalletID:        current.WalletID,
				UserID:          current.UserID,
				Amount:          current.Amount,
				FeeAmount:       fee.Amount,
				Currency:        current.Currency,
				Reference:       current.Reference,
				RecordedAt:      current.UpdatedAt,
			},
		})
	})
	if err != nil {
		logCtx := s.logg.WithField(ctx, "reference", reference)
		if pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch) {
			s.logg.Error(logCtx, "wallet funding reconciliation mismatch", err)
		}
		return nil, err
	}

	if credited {
		notifications.BestEffort(ctx, s.notifier, s.logg, notifications.Message{
			Recipient: notifications.Customer(txn.UserID),
			Kind:      enums.NotificationWalletFunded,
			Title:     "Wallet funded",
			Body:      fmt.Sprintf("Your wallet was credited with %s.", money.New(txn.Amount, txn.Currency)),
			Data:      map[string]any{"reference": txn.Reference, "amount": txn.Amount},
		})
	}
	return txn, nil
}

// FailStaleFunding moves one PENDING funding to FAILED under the wallet lock,
// so it cannot interleave with a ConfirmFunding for the same row. It reports
// false when the row was confirmed or failed in the meantime.
func (s *FundingService) FailStaleFunding(ctx context.Context, txn models.Transaction) (bool, error) {
	lease, err := s.locker.Obtain(ctx, lock.WalletKey(txn.WalletID.String()), s.wait, s.ttl)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "lock_key", lease.Key()), "wallet lock release failed")
		}
	}()

	var failed bool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		failed, err = s.txns.MarkFailed(ctx, tx, txn.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	return failed, nil
}
