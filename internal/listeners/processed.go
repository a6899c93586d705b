package listeners

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/cart"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/orders"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

// OrderProcessed turns a checked-out cart vendor into an order. A replay for a
// payment reference that already has an order is a no-op.
func (l *Listeners) OrderProcessed(ctx context.Context, event *payloads.OrderProcessedEvent) error {
	if event == nil || event.PaymentReference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order processed event missing payment reference")
	}
	ctx = l.logg.WithFields(ctx, map[string]any{
		"event":             string(enums.EventOrderProcessed),
		"payment_reference": event.PaymentReference,
		"cart_vendor_id":    event.CartVendorID.String(),
	})
	key := lock.CheckoutKey(event.UserID.String(), event.CartVendorID.String())

	return l.guarded(ctx, key, func(tx *gorm.DB) ([]notifications.Message, error) {
		existing, err := l.orders.FindByPaymentReference(ctx, tx, event.PaymentReference)
		if err == nil {
			l.logg.Info(l.logg.WithField(ctx, "order_id", existing.ID.String()), "order already created for payment reference")
			return nil, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}

		cartVendor, err := l.cart.Get(ctx, tx, event.UserID, event.CartVendorID)
		if err != nil {
			return nil, err
		}
		if gross := cart.Gross(cartVendor); gross.Amount != event.GrossTotal || gross.Currency != event.Currency {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
				"cart total %s changed since checkout priced it at %s", gross, money.New(event.GrossTotal, event.Currency))
		}

		if event.CouponID != nil {
			if _, err := l.coupons.Revalidate(ctx, tx, *event.CouponID, event.UserID); err != nil {
				return nil, err
			}
		}

		status := enums.OrderStatusPending
		if event.WalletUsage {
			status = enums.OrderStatusPaid
		}
		cartVendorID := cartVendor.ID
		order, err := l.orders.Create(ctx, tx, orders.CreateInput{
			UserID:                 event.UserID,
			VendorID:               event.VendorID,
			CartVendorID:           &cartVendorID,
			Currency:               event.Currency,
			GrossTotal:             event.GrossTotal,
			CouponDiscount:         event.CouponDiscount,
			NetTotal:               event.NetTotal,
			DeliveryFee:            event.DeliveryFee,
			CouponID:               event.CouponID,
			CouponCode:             event.CouponCode,
			PaymentReference:       event.PaymentReference,
			ProcessorTransactionID: event.ProcessorTransactionID,
			Receiver:               models.Receiver(event.Receiver),
			IsGift:                 event.IsGift,
			IPAddress:              event.IPAddress,
			InitialStatus:          status,
			PaidFromWallet:         event.WalletUsage,
			LineItems:              lineItems(cartVendor),
		})
		if err != nil {
			return nil, err
		}

		if event.WalletUsage {
			if _, err := l.book(ctx, tx, posting{
				order:   order,
				userID:  order.UserID,
				typ:     enums.TransactionOrderPayment,
				amount:  money.New(order.ChargeableAmount(), order.Currency),
				fact:    payloads.FactPayment,
				summary: "Payment",
			}); err != nil {
				return nil, err
			}
		}

		if order.CouponID != nil {
			recorded, err := l.coupons.RecordUsage(ctx, tx, *order.CouponID, order.UserID, order.ID)
			if err != nil {
				return nil, err
			}
			if !recorded {
				l.logg.Warn(ctx, "coupon usage already recorded for order")
			}
		}

		if _, err := l.cart.Consume(ctx, tx, cartVendor.ID); err != nil {
			return nil, err
		}

		l.logg.Info(l.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID.String(),
			"order_status": string(order.Status),
		}), "order created")
		return placedMessages(order), nil
	})
}

func lineItems(vendor *models.CartVendor) []orders.LineItemInput {
	out := make([]orders.LineItemInput, 0, len(vendor.Items))
	for _, item := range vendor.Items {
		out = append(out, orders.LineItemInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return out
}

func placedMessages(order *models.Order) []notifications.Message {
	data := orderData(order)
	customer := notifications.Message{
		Recipient: notifications.Customer(order.UserID),
		Kind:      enums.NotificationOrderPlaced,
		Title:     "Order placed",
		Body:      fmt.Sprintf("Order %s was placed and is awaiting payment.", order.OrderNumber),
		Data:      data,
	}
	if order.Status == enums.OrderStatusPaid {
		customer.Kind = enums.NotificationOrderPaid
		customer.Body = fmt.Sprintf("Order %s was placed and paid from your wallet.", order.OrderNumber)
	}
	msgs := []notifications.Message{customer}
	if order.Status == enums.OrderStatusPaid {
		msgs = append(msgs, vendorReceived(order))
	}
	return msgs
}

func vendorReceived(order *models.Order) notifications.Message {
	return notifications.Message{
		Recipient: notifications.Vendor(order.VendorID),
		Kind:      enums.NotificationOrderReceived,
		Title:     "New order",
		Body:      fmt.Sprintf("Order %s is paid and ready to prepare.", order.OrderNumber),
		Data:      orderData(order),
	}
}

func orderData(order *models.Order) map[string]any {
	return map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"amount":       order.ChargeableAmount(),
		"currency":     string(order.Currency),
	}
}
