package enums

import "fmt"

// NotificationChannel is a delivery medium for a notification.
type NotificationChannel string

const (
	NotificationChannelInApp NotificationChannel = "in_app"
	NotificationChannelPush  NotificationChannel = "push"
	NotificationChannelEmail NotificationChannel = "email"
)

var validNotificationChannels = []NotificationChannel{
	NotificationChannelInApp,
	NotificationChannelPush,
	NotificationChannelEmail,
}

func (c NotificationChannel) IsValid() bool {
	for _, candidate := range validNotificationChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// RecipientType is the kind of party a notification is addressed to.
type RecipientType string

const (
	RecipientCustomer RecipientType = "customer"
	RecipientVendor   RecipientType = "vendor"
	RecipientDriver   RecipientType = "driver"
)

func (r RecipientType) IsValid() bool {
	switch r {
	case RecipientCustomer, RecipientVendor, RecipientDriver:
		return true
	}
	return false
}

func ParseRecipientType(value string) (RecipientType, error) {
	r := RecipientType(value)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid recipient type %q", value)
	}
	return r, nil
}

// NotificationKind names the lifecycle moment a notification reports.
type NotificationKind string

const (
	NotificationOrderPlaced     NotificationKind = "order_placed"
	NotificationOrderReceived   NotificationKind = "order_received"
	NotificationOrderPaid       NotificationKind = "order_paid"
	NotificationOrderDispatched NotificationKind = "order_dispatched"
	NotificationOrderCompleted  NotificationKind = "order_completed"
	NotificationOrderSettled    NotificationKind = "order_settled"
	NotificationOrderCancelled  NotificationKind = "order_cancelled"
	NotificationOrderFailed     NotificationKind = "order_failed"
	NotificationWalletFunded    NotificationKind = "wallet_funded"
)
