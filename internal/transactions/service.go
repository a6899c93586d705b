// Package transactions is the append-only money-movement ledger. Every
// principal row may carry one *_FEE companion row linked through
// principal_transaction_id.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

// CreateInput describes a principal ledger row. Amount is the unsigned
// magnitude; the direction follows Type.
type CreateInput struct {
	Wallet      *models.Wallet
	Type        enums.TransactionType
	Amount      money.Money
	Reference   string
	Description string
}

// Service records and queries ledger transactions. Methods taking tx run
// inside the caller's unit of work.
type Service interface {
	CreateSuccessful(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Transaction, error)
	CreateSuccessfulFee(ctx context.Context, tx *gorm.DB, principal *models.Transaction, fee money.Money) (*models.Transaction, error)
	CreatePending(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Transaction, error)
	MarkSuccessful(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	AttachWalletTransactionFor(ctx context.Context, tx *gorm.DB, txn *models.Transaction, wallet *models.Wallet, walletEntryID uuid.UUID) error
	FindByReference(ctx context.Context, tx *gorm.DB, typ enums.TransactionType, reference string) (*models.Transaction, error)
	FeeFor(ctx context.Context, tx *gorm.DB, principalID uuid.UUID) (*models.Transaction, error)
	LatestForWallet(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) (*models.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error)
	ListStalePending(ctx context.Context, typ enums.TransactionType, cutoff time.Time, limit int) ([]models.Transaction, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a transactions service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) CreateSuccessful(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Transaction, error) {
	if input.Type.IsFee() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s rows are created through CreateSuccessfulFee", input.Type)
	}
	return s.create(ctx, tx, input, enums.TransactionStatusSuccessful)
}

func (s *service) CreatePending(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Transaction, error) {
	if input.Type.IsFee() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "fee type %s cannot be pending", input.Type)
	}
	return s.create(ctx, tx, input, enums.TransactionStatusPending)
}

func (s *service) create(ctx context.Context, tx *gorm.DB, input CreateInput, status enums.TransactionStatus) (*models.Transaction, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if input.Wallet == nil || input.Wallet.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", input.Type)
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "amount must be unsigned, got %s", input.Amount)
	}
	if input.Amount.Currency != input.Wallet.Currency {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "amount currency %s does not match wallet %s",
			input.Amount.Currency, input.Wallet.Currency)
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	now := s.now()
	txn := &models.Transaction{
		WalletID:    input.Wallet.ID,
		UserID:      input.Wallet.UserID,
		Type:        input.Type,
		Status:      status,
		Amount:      input.Amount.Amount,
		Currency:    input.Amount.Currency,
		Reference:   reference,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, createError(err, txn)
	}
	return txn, nil
}

func (s *service) CreateSuccessfulFee(ctx context.Context, tx *gorm.DB, principal *models.Transaction, fee money.Money) (*models.Transaction, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if principal == nil || principal.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "principal transaction required")
	}
	feeType, ok := principal.Type.FeeType()
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s rows never carry a fee", principal.Type)
	}
	if fee.IsNegative() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "fee must be unsigned, got %s", fee)
	}
	if fee.Currency != principal.Currency {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "fee currency %s does not match %s", fee.Currency, principal.Currency)
	}

	now := s.now()
	principalID := principal.ID
	row := &models.Transaction{
		WalletID:               principal.WalletID,
		UserID:                 principal.UserID,
		Type:                   feeType,
		Status:                 enums.TransactionStatusSuccessful,
		Amount:                 fee.Amount,
		Currency:               fee.Currency,
		Reference:              principal.Reference,
		PrincipalTransactionID: &principalID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, createError(err, row)
	}
	return row, nil
}

func createError(err error, txn *models.Transaction) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction already recorded").
			WithDetails(map[string]any{"type": txn.Type, "reference": txn.Reference})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
}

func (s *service) MarkSuccessful(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	now := s.now()
	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, txn.ID, enums.TransactionStatusPending, enums.TransactionStatusSuccessful, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction successful")
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "transaction %s is no longer pending", txn.ID)
	}
	txn.Status = enums.TransactionStatusSuccessful
	txn.UpdatedAt = now
	return nil
}

// MarkFailed reports false when the row already reached a terminal status.
func (s *service) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, id, enums.TransactionStatusPending, enums.TransactionStatusFailed, s.now())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction failed")
	}
	return ok, nil
}

// AttachWalletTransactionFor links txn to the wallet entry its mutation wrote.
// Linking to a different wallet, or relinking to another entry, is ledger drift.
func (s *service) AttachWalletTransactionFor(ctx context.Context, tx *gorm.DB, txn *models.Transaction, wallet *models.Wallet, walletEntryID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if txn == nil || wallet == nil || walletEntryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction, wallet and wallet entry required")
	}
	if txn.WalletID != wallet.ID {
		return mismatch(txn, "transaction belongs to another wallet", map[string]any{"wallet_id": wallet.ID.String()})
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.SetWalletEntry(ctx, txn.ID, walletEntryID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach wallet entry")
	}
	if !ok {
		current, err := repo.FindByID(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload transaction")
		}
		if current.WalletEntryID == nil || *current.WalletEntryID != walletEntryID {
			return mismatch(txn, "transaction already linked to another wallet entry", map[string]any{
				"wallet_entry_id": walletEntryID.String(),
			})
		}
	}
	txn.WalletEntryID = &walletEntryID
	return nil
}

func mismatch(txn *models.Transaction, reason string, details map[string]any) error {
	details["transaction_id"] = txn.ID.String()
	return pkgerrors.Newf(pkgerrors.CodeReconciliationMismatch, "transaction %s: %s", txn.ID, reason).
		WithDetails(details)
}

func (s *service) FindByReference(ctx context.Context, tx *gorm.DB, typ enums.TransactionType, reference string) (*models.Transaction, error) {
	txn, err := s.repo.WithTx(tx).FindByTypeAndReference(ctx, typ, reference)
	if err != nil {
		return nil, lookupError(err, "transaction not found")
	}
	return txn, nil
}

func (s *service) FeeFor(ctx context.Context, tx *gorm.DB, principalID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.WithTx(tx).FindFee(ctx, principalID)
	if err != nil {
		return nil, lookupError(err, "fee transaction not found")
	}
	return txn, nil
}

// LatestForWallet returns the most recent principal row of the wallet.
func (s *service) LatestForWallet(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.WithTx(tx).LatestForWallet(ctx, walletID)
	if err != nil {
		return nil, lookupError(err, "wallet has no transactions")
	}
	return txn, nil
}

func (s *service) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	txns, err := s.repo.ListByWallet(ctx, walletID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	return txns, nil
}

func (s *service) ListStalePending(ctx context.Context, typ enums.TransactionType, cutoff time.Time, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	txns, err := s.repo.ListStalePending(ctx, typ, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending transactions")
	}
	return txns, nil
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
}
