package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Wallet holds the cached balance of one user, in minor units.
type Wallet struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Currency  enums.Currency `gorm:"column:currency;not null"`
	Balance   int64          `gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// WalletEntry is the balance-mutation row written by every deposit or debit.
// Amount is signed: credits positive, debits negative.
type WalletEntry struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WalletID     uuid.UUID `gorm:"column:wallet_id;type:uuid;not null;index"`
	Amount       int64     `gorm:"column:amount;not null"`
	BalanceAfter int64     `gorm:"column:balance_after;not null"`
	Reference    string    `gorm:"column:reference;not null"`
	// Sequence numbers a wallet's entries from 1 in write order.
	Sequence     int64     `gorm:"column:sequence;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (WalletEntry) TableName() string { return "wallet_entries" }

func (e *WalletEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
