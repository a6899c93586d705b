package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// LineItemInput snapshots one purchased product at its checkout price.
type LineItemInput struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   int64
}

// CreateInput carries everything the processed listener knows about a new
// order. Amounts are minor units of Currency.
type CreateInput struct {
	UserID                 uuid.UUID
	VendorID               uuid.UUID
	CartVendorID           *uuid.UUID
	Currency               enums.Currency
	GrossTotal             int64
	CouponDiscount         int64
	NetTotal               int64
	DeliveryFee            int64
	CouponID               *uuid.UUID
	CouponCode             *string
	PaymentReference       string
	ProcessorTransactionID *string
	Receiver               models.Receiver
	IsGift                 bool
	IPAddress              *string
	InitialStatus          enums.OrderStatus
	PaidFromWallet         bool
	LineItems              []LineItemInput
}

// OrderList is a page of orders with the cursor of the next page.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
