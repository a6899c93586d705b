package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Receiver captures who takes delivery of an order.
type Receiver struct {
	Name    string `gorm:"column:name"`
	Phone   string `gorm:"column:phone"`
	Address string `gorm:"column:address"`
	Note    string `gorm:"column:note"`
}

// Order is the financial record of one vendor's checkout. Orders are never deleted.
type Order struct {
	ID                     uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber            string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID                 uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	VendorID               uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null"`
	DriverID               *uuid.UUID        `gorm:"column:driver_id;type:uuid"`
	CartVendorID           *uuid.UUID        `gorm:"column:cart_vendor_id;type:uuid"`
	Status                 enums.OrderStatus `gorm:"column:status;not null"`
	Currency               enums.Currency    `gorm:"column:currency;not null"`
	GrossTotalAmount       int64             `gorm:"column:gross_total_amount;not null"`
	CouponDiscount         int64             `gorm:"column:coupon_discount;not null;default:0"`
	NetTotalAmount         int64             `gorm:"column:net_total_amount;not null"`
	DeliveryFee            int64             `gorm:"column:delivery_fee;not null;default:0"`
	CouponID               *uuid.UUID        `gorm:"column:coupon_id;type:uuid"`
	CouponCode             *string           `gorm:"column:coupon_code"`
	PaymentReference       string            `gorm:"column:payment_reference;not null;uniqueIndex"`
	ProcessorTransactionID *string           `gorm:"column:processor_transaction_id"`
	PaidFromWallet         bool              `gorm:"column:paid_from_wallet;not null;default:false"`
	Receiver               Receiver          `gorm:"embedded;embeddedPrefix:receiver_"`
	IsGift                 bool              `gorm:"column:is_gift;not null;default:false"`
	IPAddress              *string           `gorm:"column:ip_address"`
	DeliveryOTPHash        *string           `gorm:"column:delivery_otp_hash"`
	PaidAt                 *time.Time        `gorm:"column:paid_at"`
	DispatchedAt           *time.Time        `gorm:"column:dispatched_at"`
	DeliveredAt            *time.Time        `gorm:"column:delivered_at"`
	CompletedAt            *time.Time        `gorm:"column:completed_at"`
	SettledAt              *time.Time        `gorm:"column:settled_at"`
	CancelledAt            *time.Time        `gorm:"column:cancelled_at"`
	FailedAt               *time.Time        `gorm:"column:failed_at"`
	CreatedAt              time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// ChargeableAmount is what the customer pays: net plus delivery.
func (o Order) ChargeableAmount() int64 {
	return o.NetTotalAmount + o.DeliveryFee
}

// OrderLineItem snapshots the product price at purchase time.
type OrderLineItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName string    `gorm:"column:product_name;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	TotalPrice  int64     `gorm:"column:total_price;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
