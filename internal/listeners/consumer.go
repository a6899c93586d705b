package listeners

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/metrics"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/retry"
)

// ConsumerName scopes idempotency marks for the lifecycle consumer.
const ConsumerName = "order-lifecycle"

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type processedStore interface {
	IsProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type dlqWriter interface {
	Insert(ctx context.Context, entry models.OutboxDLQ) error
}

// Delivery is one queue message as the consumer sees it.
type Delivery struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// ConsumerParams wires the lifecycle consumer.
type ConsumerParams struct {
	Subscription *gcppubsub.Subscriber
	Dispatcher   *Dispatcher
	Decoders     decoder
	Idempotency  processedStore
	DLQ          dlqWriter
	Policy       retry.Policy
	Metrics      *metrics.ListenerMetrics
	Logger       *logger.Logger
}

// Consumer feeds lifecycle events from Pub/Sub through the dispatcher.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	dispatcher   *Dispatcher
	decoders     decoder
	processed    processedStore
	dlq          dlqWriter
	policy       retry.Policy
	metrics      *metrics.ListenerMetrics
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	switch {
	case params.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case params.Decoders == nil:
		return nil, errors.New("decoder registry is required")
	case params.Idempotency == nil:
		return nil, errors.New("idempotency store is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: params.Subscription,
		dispatcher:   params.Dispatcher,
		decoders:     params.Decoders,
		processed:    params.Idempotency,
		dlq:          params.DLQ,
		policy:       params.Policy,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run receives until ctx is cancelled or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("lifecycle subscription is required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.Handle(ctx, Delivery{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes}) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Handle processes one delivery and reports whether it should be acked.
// Retryable failures that outlast the policy are nacked for redelivery;
// terminal failures are dead-lettered and acked.
func (c *Consumer) Handle(ctx context.Context, d Delivery) bool {
	started := time.Now()
	eventType := enums.OutboxEventType(d.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": d.ID,
		"event_type": string(eventType),
	})
	if !c.dispatcher.Handles(eventType) {
		c.logg.Warn(logCtx, "no lifecycle handler for event, acking")
		return true
	}

	env, err := outbox.DecodeEnvelope(d.Data)
	if err != nil {
		return c.deadLetter(logCtx, d, uuid.Nil, enums.OutboxDLQReasonNonRetryable, err, 0, started)
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		eventID, err = uuid.Parse(d.Attributes["event_id"])
	}
	if err != nil {
		return c.deadLetter(logCtx, d, uuid.Nil, enums.OutboxDLQReasonNonRetryable, errors.New("event id missing"), 0, started)
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	done, err := c.processed.IsProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Warn(logCtx, "idempotency lookup failed, handling anyway")
	}
	if done {
		c.logg.Info(logCtx, "event already processed")
		c.metrics.Observe(string(eventType), metrics.OutcomeSkippedDuplicate, time.Since(started))
		return true
	}

	payload, err := c.decoders.Decode(eventType, env.Version, env.Data)
	if err != nil {
		return c.deadLetter(logCtx, d, eventID, enums.OutboxDLQReasonNonRetryable, err, 0, started)
	}

	attempts := 0
	err = c.policy.Do(logCtx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		return c.dispatcher.Dispatch(ctx, eventType, payload)
	})
	if err == nil {
		if err := c.processed.MarkProcessed(ctx, ConsumerName, eventID); err != nil {
			c.logg.Error(logCtx, "failed to mark event processed", err)
		}
		c.metrics.Observe(string(eventType), metrics.OutcomeProcessed, time.Since(started))
		c.logg.Info(c.logg.WithField(logCtx, "attempts", attempts), "lifecycle event handled")
		return true
	}

	if ctx.Err() != nil {
		return false
	}
	if pkgerrors.IsRetryable(err) {
		outcome := metrics.OutcomeFailed
		if lock.IsContention(err) {
			outcome = metrics.OutcomeLockContention
		}
		c.metrics.Observe(string(eventType), outcome, time.Since(started))
		c.logg.Error(c.logg.WithField(logCtx, "attempts", attempts), "lifecycle event failed, leaving for redelivery", err)
		return false
	}
	return c.deadLetter(logCtx, d, eventID, enums.OutboxDLQReasonNonRetryable, err, attempts, started)
}

func (c *Consumer) deadLetter(ctx context.Context, d Delivery, eventID uuid.UUID, reason enums.OutboxDLQErrorReason, cause error, attempts int, started time.Time) bool {
	eventType := enums.OutboxEventType(d.Attributes["event_type"])
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	aggregateID, _ := uuid.Parse(d.Attributes["aggregate_id"])
	entry := outbox.NewDLQEntry(models.OutboxEvent{
		ID:            eventID,
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateType(d.Attributes["aggregate_type"]),
		AggregateID:   aggregateID,
		Payload:       json.RawMessage(d.Data),
	}, reason, cause, attempts)
	if err := c.dlq.Insert(ctx, entry); err != nil {
		c.logg.Error(ctx, "failed to dead-letter lifecycle event", err)
		return false
	}
	c.metrics.Observe(string(eventType), metrics.OutcomeDeadLettered, time.Since(started))
	c.logg.Error(c.logg.WithField(ctx, "attempts", attempts), "lifecycle event dead-lettered", cause)
	return true
}
