package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Settlement is the immutable vendor payout record of a completed order.
type Settlement struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	VendorID       uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	TotalAmount    int64                  `gorm:"column:total_amount;not null"`
	PlatformFee    int64                  `gorm:"column:platform_fee;not null"`
	VendorAmount   int64                  `gorm:"column:vendor_amount;not null"`
	Currency       enums.Currency         `gorm:"column:currency;not null"`
	PaymentGateway string                 `gorm:"column:payment_gateway;not null"`
	Status         enums.SettlementStatus `gorm:"column:status;not null"`
	TransactionID  *uuid.UUID             `gorm:"column:transaction_id;type:uuid"`
	SettledAt      time.Time              `gorm:"column:settled_at;not null"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Settlement) TableName() string { return "settlements" }

func (s *Settlement) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
