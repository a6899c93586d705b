package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Coupon describes a redeemable discount. FlatAmount is in minor units and is
// used for flat coupons; PercentOff for percent coupons.
type Coupon struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Code              string                   `gorm:"column:code;not null;uniqueIndex"`
	DiscountType      enums.CouponDiscountType `gorm:"column:discount_type;not null"`
	FlatAmount        int64                    `gorm:"column:flat_amount;not null;default:0"`
	PercentOff        decimal.Decimal          `gorm:"column:percent_off;type:numeric(5,2);not null;default:0"`
	Currency          enums.Currency           `gorm:"column:currency;not null"`
	MinimumOrderValue int64                    `gorm:"column:minimum_order_value;not null;default:0"`
	MaximumDiscount   *int64                   `gorm:"column:maximum_discount"`
	UsagePerCustomer  *int                     `gorm:"column:usage_per_customer"`
	UsageCount        int                      `gorm:"column:usage_count;not null;default:0"`
	Status            enums.CouponStatus       `gorm:"column:status;not null"`
	IsHidden          bool                     `gorm:"column:is_hidden;not null;default:false"`
	ExpiresAt         *time.Time               `gorm:"column:expires_at"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CouponUsage links a coupon to the entity that redeemed it (usable_type + usable_id).
type CouponUsage struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CouponID   uuid.UUID              `gorm:"column:coupon_id;type:uuid;not null"`
	UserID     uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	UsableType enums.CouponUsableType `gorm:"column:usable_type;not null"`
	UsableID   uuid.UUID              `gorm:"column:usable_id;type:uuid;not null"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (CouponUsage) TableName() string { return "coupon_usages" }

func (u *CouponUsage) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
