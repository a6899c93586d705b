package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Repository persists wallets and their balance-mutation entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIfAbsent(ctx context.Context, wallet *models.Wallet) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error
	CreateEntry(ctx context.Context, entry *models.WalletEntry) error
	LatestEntry(ctx context.Context, walletID uuid.UUID) (*models.WalletEntry, error)
	SuccessfulTransactionTotal(ctx context.Context, walletID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallets repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateIfAbsent inserts the wallet unless the user already has one.
func (r *repository) CreateIfAbsent(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockByID reloads the wallet with a row lock held until the transaction ends.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", id).
		Update("balance", balance).Error
}

// CreateEntry appends entry after the wallet's current last one. Callers hold
// the wallet row lock, which keeps the sequence gap free.
func (r *repository) CreateEntry(ctx context.Context, entry *models.WalletEntry) error {
	var last int64
	if err := r.db.WithContext(ctx).
		Model(&models.WalletEntry{}).
		Where("wallet_id = ?", entry.WalletID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error; err != nil {
		return err
	}
	entry.Sequence = last + 1
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) LatestEntry(ctx context.Context, walletID uuid.UUID) (*models.WalletEntry, error) {
	var entry models.WalletEntry
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("sequence DESC").
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// SuccessfulTransactionTotal sums SUCCESSFUL transactions signed by type.
func (r *repository) SuccessfulTransactionTotal(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT CAST(COALESCE(SUM(CASE WHEN type IN ? THEN -amount ELSE amount END), 0) AS BIGINT)
		   FROM transactions
		  WHERE wallet_id = ? AND status = ?`,
		enums.DebitTransactionTypes(), walletID, enums.TransactionStatusSuccessful,
	).Scan(&total).Error
	return total, err
}
