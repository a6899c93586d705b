package listeners

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

// OrderCancelled cancels a PENDING or PAID order. A PAID order is refunded in
// full (net plus delivery) to the customer's wallet; a PENDING one was never
// charged and refunds nothing.
func (l *Listeners) OrderCancelled(ctx context.Context, event *payloads.OrderCancelledEvent) error {
	if event == nil || event.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation event missing order id")
	}
	ctx = l.orderContext(ctx, enums.EventOrderCancelled, event.OrderID)
	return l.guarded(ctx, lock.OrderKey(event.OrderID.String()), func(tx *gorm.DB) ([]notifications.Message, error) {
		order, err := l.orders.Lock(ctx, tx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if alreadyIn(order, enums.OrderStatusCancelled) {
			l.logg.Info(ctx, "order already cancelled")
			return nil, nil
		}
		wasPaid := order.Status == enums.OrderStatusPaid
		if err := l.orders.MarkCancelled(ctx, tx, order); err != nil {
			return nil, err
		}

		body := fmt.Sprintf("Order %s was cancelled.", order.OrderNumber)
		data := orderData(order)
		if event.Reason != "" {
			data["reason"] = event.Reason
		}
		if wasPaid {
			refund := money.New(order.ChargeableAmount(), order.Currency)
			if _, err := l.book(ctx, tx, posting{
				order:   order,
				userID:  order.UserID,
				typ:     enums.TransactionOrderRefund,
				amount:  refund,
				fact:    payloads.FactRefund,
				summary: "Refund",
			}); err != nil {
				return nil, err
			}
			body = fmt.Sprintf("Order %s was cancelled and %s was refunded to your wallet.", order.OrderNumber, refund)
			data["refunded"] = refund.Amount
		}
		return []notifications.Message{{
			Recipient: notifications.Customer(order.UserID),
			Kind:      enums.NotificationOrderCancelled,
			Title:     "Order cancelled",
			Body:      body,
			Data:      data,
		}}, nil
	})
}
