// Package payloads defines the JSON bodies carried inside outbox envelopes.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Receiver is who takes delivery of the order.
type Receiver struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Note    string `json:"note,omitempty"`
}

// OrderProcessedEvent is emitted by checkout once a cart vendor is priced and
// validated. Amounts are minor units.
type OrderProcessedEvent struct {
	UserID                 uuid.UUID      `json:"user_id"`
	VendorID               uuid.UUID      `json:"vendor_id"`
	CartVendorID           uuid.UUID      `json:"cart_vendor_id"`
	GrossTotal             int64          `json:"gross_total"`
	CouponDiscount         int64          `json:"coupon_discount"`
	NetTotal               int64          `json:"net_total"`
	DeliveryFee            int64          `json:"delivery_fee"`
	Currency               enums.Currency `json:"currency"`
	PaymentReference       string         `json:"payment_reference"`
	CouponID               *uuid.UUID     `json:"coupon_id,omitempty"`
	CouponCode             *string        `json:"coupon_code,omitempty"`
	ProcessorTransactionID *string        `json:"processor_transaction_id,omitempty"`
	Receiver               Receiver       `json:"receiver"`
	IsGift                 bool           `json:"is_gift"`
	WalletUsage            bool           `json:"wallet_usage"`
	IPAddress              *string        `json:"ip_address,omitempty"`
}

// OrderPaymentSuccessfulEvent relays an already verified processor callback.
type OrderPaymentSuccessfulEvent struct {
	OrderID                uuid.UUID `json:"order_id"`
	ProcessorTransactionID *string   `json:"processor_transaction_id,omitempty"`
}

type OrderDispatchedEvent struct {
	OrderID  uuid.UUID  `json:"order_id"`
	DriverID *uuid.UUID `json:"driver_id,omitempty"`
}

type OrderCompletedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

type OrderCancelledEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason,omitempty"`
}

// Ledger fact kinds.
const (
	FactPayment    = "payment"
	FactSettlement = "settlement"
	FactRefund     = "refund"
	FactFunding    = "funding"
)

// LedgerFactEvent records one committed money movement for analytics.
type LedgerFactEvent struct {
	Fact            string                `json:"fact"`
	TransactionID   uuid.UUID             `json:"transaction_id"`
	TransactionType enums.TransactionType `json:"transaction_type"`
	WalletID        uuid.UUID             `json:"wallet_id"`
	UserID          uuid.UUID             `json:"user_id"`
	OrderID         *uuid.UUID            `json:"order_id,omitempty"`
	VendorID        *uuid.UUID            `json:"vendor_id,omitempty"`
	Amount          int64                 `json:"amount"`
	FeeAmount       int64                 `json:"fee_amount"`
	PlatformFee     *int64                `json:"platform_fee,omitempty"`
	VendorAmount    *int64                `json:"vendor_amount,omitempty"`
	Currency        enums.Currency        `json:"currency"`
	Reference       string                `json:"reference"`
	RecordedAt      time.Time             `json:"recorded_at"`
}
