package notifications

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Recipient is a tagged reference to the party a message is addressed to.
type Recipient struct {
	Type enums.RecipientType `json:"type"`
	ID   uuid.UUID           `json:"id"`
}

func Customer(id uuid.UUID) Recipient { return Recipient{Type: enums.RecipientCustomer, ID: id} }
func Vendor(id uuid.UUID) Recipient   { return Recipient{Type: enums.RecipientVendor, ID: id} }
func Driver(id uuid.UUID) Recipient   { return Recipient{Type: enums.RecipientDriver, ID: id} }

func (r Recipient) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("invalid recipient type %q", r.Type)
	}
	if r.ID == uuid.Nil {
		return fmt.Errorf("recipient id required")
	}
	return nil
}

// DefaultChannels is used when a message names none.
var DefaultChannels = []enums.NotificationChannel{
	enums.NotificationChannelInApp,
	enums.NotificationChannelPush,
}

// Message is one user-facing notification. Data carries the per-event payload
// (order number, amounts, delivery OTP) that channel templates render.
type Message struct {
	Recipient Recipient
	Kind      enums.NotificationKind
	Title     string
	Body      string
	Data      map[string]any
	Channels  []enums.NotificationChannel
}

func (m Message) channels() []enums.NotificationChannel {
	if len(m.Channels) == 0 {
		return DefaultChannels
	}
	return m.Channels
}
