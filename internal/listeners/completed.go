package listeners

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/settlements"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

// OrderCompleted closes the order and settles the vendor: the commission is
// kept by the platform and the remainder is deposited to the vendor wallet.
// An order settles at most once.
func (l *Listeners) OrderCompleted(ctx context.Context, event *payloads.OrderCompletedEvent) error {
	if event == nil || event.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "completion event missing order id")
	}
	ctx = l.orderContext(ctx, enums.EventOrderCompleted, event.OrderID)
	return l.guarded(ctx, lock.OrderKey(event.OrderID.String()), func(tx *gorm.DB) ([]notifications.Message, error) {
		order, err := l.orders.Lock(ctx, tx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if order.SettledAt != nil {
			l.logg.Info(ctx, "order already settled")
			return nil, nil
		}
		if order.Status != enums.OrderStatusCompleted {
			if err := l.orders.MarkCompleted(ctx, tx, order); err != nil {
				return nil, err
			}
		}

		split, err := settlements.ComputeSplit(money.New(order.ChargeableAmount(), order.Currency), l.rate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compute settlement split")
		}
		var settlementTxnID uuid.UUID
		if split.VendorAmount.IsPositive() {
			txn, err := l.book(ctx, tx, posting{
				order:   order,
				userID:  order.VendorID,
				typ:     enums.TransactionOrderSettlement,
				amount:  split.VendorAmount,
				fact:    payloads.FactSettlement,
				split:   &split,
				summary: "Settlement",
			})
			if err != nil {
				return nil, err
			}
			settlementTxnID = txn.ID
		}
		settlement, err := l.settle.Record(ctx, tx, settlements.RecordInput{
			Order:         order,
			Split:         split,
			TransactionID: settlementTxnID,
		})
		if err != nil {
			return nil, err
		}
		settled, err := l.orders.MarkSettled(ctx, tx, order)
		if err != nil {
			return nil, err
		}
		if !settled {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "order %s was settled concurrently", order.ID)
		}

		l.logg.Info(l.logg.WithFields(ctx, map[string]any{
			"settlement_id": settlement.ID.String(),
			"platform_fee":  split.PlatformFee.Amount,
			"vendor_amount": split.VendorAmount.Amount,
		}), "order settled")

		vendorData := orderData(order)
		vendorData["platform_fee"] = split.PlatformFee.Amount
		vendorData["vendor_amount"] = split.VendorAmount.Amount
		return []notifications.Message{
			{
				Recipient: notifications.Customer(order.UserID),
				Kind:      enums.NotificationOrderCompleted,
				Title:     "Order delivered",
				Body:      fmt.Sprintf("Order %s was delivered. Enjoy!", order.OrderNumber),
				Data:      orderData(order),
			},
			{
				Recipient: notifications.Vendor(order.VendorID),
				Kind:      enums.NotificationOrderSettled,
				Title:     "Order settled",
				Body:      fmt.Sprintf("%s was credited to your wallet for order %s.", split.VendorAmount, order.OrderNumber),
				Data:      vendorData,
			},
		}, nil
	})
}
