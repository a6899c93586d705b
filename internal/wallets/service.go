// Package wallets owns per-user balances. Every balance mutation writes a
// signed wallet entry carrying the running balance.
package wallets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

// Service mutates and audits wallets. Mutations require the caller's tx and
// lock the wallet row for its remainder.
type Service interface {
	EnsureWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Deposit(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, amount money.Money, reference string) (*models.WalletEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, amount money.Money, reference string) (*models.WalletEntry, error)
	VerifyLatestEntry(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, expected money.Money) error
	VerifyBalance(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a wallet service over repo.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureWallet returns the user's wallet, creating an empty one on first use.
func (s *service) EnsureWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid currency %q", currency)
	}
	repo := s.repo.WithTx(tx)
	now := s.now()
	candidate := &models.Wallet{UserID: userID, Currency: currency, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateIfAbsent(ctx, candidate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	wallet, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) Deposit(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, amount money.Money, reference string) (*models.WalletEntry, error) {
	return s.mutate(ctx, tx, wallet, amount, reference, 1)
}

// Debit fails with INSUFFICIENT_FUNDS and leaves the wallet untouched when the
// balance cannot cover amount.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, amount money.Money, reference string) (*models.WalletEntry, error) {
	return s.mutate(ctx, tx, wallet, amount, reference, -1)
}

func (s *service) mutate(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, amount money.Money, reference string, sign int64) (*models.WalletEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if wallet == nil || wallet.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}
	if amount.IsNegative() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "amount must not be negative, got %s", amount)
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	repo := s.repo.WithTx(tx)
	locked, err := repo.LockByID(ctx, wallet.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	if amount.Currency != locked.Currency {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "amount currency %s does not match wallet %s",
			amount.Currency, locked.Currency)
	}

	balance := locked.Balance + sign*amount.Amount
	if balance < 0 {
		return nil, ErrInsufficientFunds(locked.ID, money.New(locked.Balance, locked.Currency), amount)
	}
	if err := repo.UpdateBalance(ctx, locked.ID, balance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}
	entry := &models.WalletEntry{
		WalletID:     locked.ID,
		Amount:       sign * amount.Amount,
		BalanceAfter: balance,
		Reference:    reference,
		CreatedAt:    s.now(),
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write wallet entry")
	}

	locked.Balance = balance
	*wallet = *locked
	return entry, nil
}

// VerifyLatestEntry checks that the newest entry of wallet is the mutation
// the caller just made: same wallet, signed amount expected, and a running
// balance equal to the cached one.
func (s *service) VerifyLatestEntry(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, expected money.Money) error {
	if wallet == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}
	repo := s.repo.WithTx(tx)
	entry, err := repo.LatestEntry(ctx, wallet.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReconciliationMismatch(wallet.ID, "no wallet entry recorded", nil)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest wallet entry")
	}
	current, err := repo.FindByID(ctx, wallet.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
	}

	details := map[string]any{
		"entry_id":        entry.ID.String(),
		"entry_amount":    entry.Amount,
		"expected_amount": expected.Amount,
		"balance_after":   entry.BalanceAfter,
		"balance":         current.Balance,
	}
	switch {
	case entry.WalletID != wallet.ID:
		return ErrReconciliationMismatch(wallet.ID, "latest entry belongs to another wallet", details)
	case expected.Currency != current.Currency:
		return ErrReconciliationMismatch(wallet.ID, "expected amount currency differs from wallet", details)
	case entry.Amount != expected.Amount:
		return ErrReconciliationMismatch(wallet.ID, "latest entry amount differs", details)
	case entry.BalanceAfter != current.Balance:
		return ErrReconciliationMismatch(wallet.ID, "latest entry balance differs from wallet balance", details)
	}
	return nil
}

// VerifyBalance recomputes the balance from SUCCESSFUL ledger rows and
// compares it with the cached wallet balance.
func (s *service) VerifyBalance(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	total, err := repo.SuccessfulTransactionTotal(ctx, walletID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet transactions")
	}
	if total != wallet.Balance {
		return ErrReconciliationMismatch(walletID, "ledger total differs from cached balance", map[string]any{
			"ledger_total": total,
			"balance":      wallet.Balance,
		})
	}
	return nil
}
