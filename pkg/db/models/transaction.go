package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Transaction is an append-only ledger row. Amount is the unsigned magnitude;
// the direction comes from Type.Sign().
type Transaction struct {
	ID                     uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	WalletID               uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index"`
	UserID                 uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	Type                   enums.TransactionType   `gorm:"column:type;not null"`
	Status                 enums.TransactionStatus `gorm:"column:status;not null"`
	Amount                 int64                   `gorm:"column:amount;not null"`
	Currency               enums.Currency          `gorm:"column:currency;not null"`
	Reference              string                  `gorm:"column:reference;not null"`
	PrincipalTransactionID *uuid.UUID              `gorm:"column:principal_transaction_id;type:uuid"`
	WalletEntryID          *uuid.UUID              `gorm:"column:wallet_entry_id;type:uuid"`
	Description            string                  `gorm:"column:description"`
	CreatedAt              time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// SignedAmount is the effect of this row on the wallet balance.
func (t Transaction) SignedAmount() int64 {
	return t.Type.Sign() * t.Amount
}
