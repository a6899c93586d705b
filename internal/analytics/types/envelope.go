package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Envelope is the decoded Pub/Sub message handed to analytics handlers.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
