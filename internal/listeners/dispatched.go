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
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

// OrderDispatched moves the order out for delivery and sends the customer the
// delivery OTP. Only the OTP hash is stored.
func (l *Listeners) OrderDispatched(ctx context.Context, event *payloads.OrderDispatchedEvent) error {
	if event == nil || event.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispatch event missing order id")
	}
	ctx = l.orderContext(ctx, enums.EventOrderDispatched, event.OrderID)
	return l.guarded(ctx, lock.OrderKey(event.OrderID.String()), func(tx *gorm.DB) ([]notifications.Message, error) {
		order, err := l.orders.Lock(ctx, tx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if order.DispatchedAt != nil {
			l.logg.Info(ctx, "order already dispatched")
			return nil, nil
		}
		otp, err := l.orders.MarkDispatched(ctx, tx, order)
		if err != nil {
			return nil, err
		}

		data := orderData(order)
		data["delivery_otp"] = otp
		msgs := []notifications.Message{{
			Recipient: notifications.Customer(order.UserID),
			Kind:      enums.NotificationOrderDispatched,
			Title:     "Order on the way",
			Body:      fmt.Sprintf("Order %s is on the way. Share code %s with the driver on delivery.", order.OrderNumber, otp),
			Data:      data,
		}}
		driverID := event.DriverID
		if driverID == nil {
			driverID = order.DriverID
		}
		if driverID != nil {
			msgs = append(msgs, notifications.Message{
				Recipient: notifications.Driver(*driverID),
				Kind:      enums.NotificationOrderDispatched,
				Title:     "Delivery started",
				Body:      fmt.Sprintf("Deliver order %s to %s.", order.OrderNumber, order.Receiver.Address),
				Data:      orderData(order),
			})
		}
		return msgs, nil
	})
}
