package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// CartVendor groups one vendor's items inside a user's cart; it is the unit of checkout.
type CartVendor struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	VendorID  uuid.UUID      `gorm:"column:vendor_id;type:uuid;not null"`
	Currency  enums.Currency `gorm:"column:currency;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`

	Items []CartItem `gorm:"foreignKey:CartVendorID;references:ID"`
}

func (CartVendor) TableName() string { return "cart_vendors" }

func (c *CartVendor) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem carries the unit price captured when the item was added.
type CartItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartVendorID uuid.UUID `gorm:"column:cart_vendor_id;type:uuid;not null;index"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName  string    `gorm:"column:product_name;not null"`
	Quantity     int       `gorm:"column:quantity;not null"`
	UnitPrice    int64     `gorm:"column:unit_price;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Subtotal is unit price times quantity.
func (i CartItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}
