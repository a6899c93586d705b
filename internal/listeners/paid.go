package listeners

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

// OrderPaymentSuccessful records a verified processor payment. A FAILED or
// CANCELLED order rejects it with InvalidTransition.
func (l *Listeners) OrderPaymentSuccessful(ctx context.Context, event *payloads.OrderPaymentSuccessfulEvent) error {
	if event == nil || event.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment event missing order id")
	}
	ctx = l.orderContext(ctx, enums.EventOrderPaymentSuccessful, event.OrderID)
	return l.guarded(ctx, lock.OrderKey(event.OrderID.String()), func(tx *gorm.DB) ([]notifications.Message, error) {
		order, err := l.orders.Lock(ctx, tx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if order.PaidAt != nil {
			l.logg.Info(ctx, "order already paid")
			return nil, nil
		}
		if err := l.orders.MarkPaid(ctx, tx, order, event.ProcessorTransactionID); err != nil {
			return nil, err
		}
		return []notifications.Message{
			{
				Recipient: notifications.Customer(order.UserID),
				Kind:      enums.NotificationOrderPaid,
				Title:     "Payment received",
				Body:      fmt.Sprintf("We received payment for order %s.", order.OrderNumber),
				Data:      orderData(order),
			},
			vendorReceived(order),
		}, nil
	})
}

// orderContext tags the log context with the event and order.
func (l *Listeners) orderContext(ctx context.Context, event enums.OutboxEventType, orderID uuid.UUID) context.Context {
	return l.logg.WithFields(ctx, map[string]any{
		"event":    string(event),
		"order_id": orderID.String(),
	})
}

func alreadyIn(order *models.Order, statuses ...enums.OrderStatus) bool {
	for _, s := range statuses {
		if order.Status == s {
			return true
		}
	}
	return false
}
