package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventChecker interface {
	ExistsTx(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

// Actor identifies who asked for a lifecycle change.
type Actor struct {
	Role string
	ID   *uuid.UUID
}

// Accepted is the outcome of a lifecycle command. Duplicate is set when the
// same event was already queued for the order and nothing new was emitted.
type Accepted struct {
	OrderID   uuid.UUID             `json:"order_id"`
	EventType enums.OutboxEventType `json:"event_type"`
	Status    enums.OrderStatus     `json:"status"`
	Duplicate bool                  `json:"duplicate"`
}

// CommandParams wires the command side of the order lifecycle.
type CommandParams struct {
	DB     txRunner
	Orders Service
	Outbox outbox.Emitter
	Events eventChecker
	Logger *logger.Logger
}

// Commands validates a requested lifecycle change against the current order
// state and queues the matching event. State changes happen in the listeners.
type Commands struct {
	db     txRunner
	orders Service
	outbox outbox.Emitter
	events eventChecker
	logg   *logger.Logger
}

func NewCommands(params CommandParams) (*Commands, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Events == nil:
		return nil, fmt.Errorf("outbox event checker required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Commands{
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		events: params.Events,
		logg:   params.Logger,
	}, nil
}

// ConfirmPayment relays a verified processor callback. A callback for an
// order that is already paid is accepted without a new event.
func (c *Commands) ConfirmPayment(ctx context.Context, actor Actor, orderID uuid.UUID, processorTransactionID *string) (*Accepted, error) {
	return c.request(ctx, actor, orderID, enums.EventOrderPaymentSuccessful, enums.OrderStatusPaid,
		func(order *models.Order) (any, bool) {
			return payloads.OrderPaymentSuccessfulEvent{OrderID: order.ID, ProcessorTransactionID: processorTransactionID}, order.PaidAt != nil
		})
}

func (c *Commands) Dispatch(ctx context.Context, actor Actor, orderID uuid.UUID, driverID *uuid.UUID) (*Accepted, error) {
	return c.request(ctx, actor, orderID, enums.EventOrderDispatched, enums.OrderStatusDispatched,
		func(order *models.Order) (any, bool) {
			return payloads.OrderDispatchedEvent{OrderID: order.ID, DriverID: driverID}, order.DispatchedAt != nil
		})
}

func (c *Commands) Complete(ctx context.Context, actor Actor, orderID uuid.UUID) (*Accepted, error) {
	return c.request(ctx, actor, orderID, enums.EventOrderCompleted, enums.OrderStatusCompleted,
		func(order *models.Order) (any, bool) {
			return payloads.OrderCompletedEvent{OrderID: order.ID}, order.SettledAt != nil
		})
}

func (c *Commands) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*Accepted, error) {
	return c.request(ctx, actor, orderID, enums.EventOrderCancelled, enums.OrderStatusCancelled,
		func(order *models.Order) (any, bool) {
			return payloads.OrderCancelledEvent{OrderID: order.ID, Reason: reason}, order.Status == enums.OrderStatusCancelled
		})
}

// Advance moves the order through the fulfillment sub-states. These carry no
// money movement so they apply synchronously.
func (c *Commands) Advance(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	var out *models.Order
	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := c.orders.Lock(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := c.orders.Advance(ctx, tx, order, to); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// request loads the order, rejects illegal targets with InvalidTransition and
// queues the event once. build returns the payload and whether the target
// state was already reached.
func (c *Commands) request(
	ctx context.Context,
	actor Actor,
	orderID uuid.UUID,
	eventType enums.OutboxEventType,
	target enums.OrderStatus,
	build func(*models.Order) (any, bool),
) (*Accepted, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	accepted := &Accepted{OrderID: orderID, EventType: eventType}
	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := c.orders.Get(ctx, tx, orderID)
		if err != nil {
			return err
		}
		accepted.Status = order.Status

		data, reached := build(order)
		if reached {
			accepted.Duplicate = true
			return nil
		}
		// an order already in target but not finished (completed, unsettled)
		// still needs its listener to run
		if order.Status != target {
			if err := CheckTransition(order.ID, order.Status, target); err != nil {
				return err
			}
		}

		queued, err := c.events.ExistsTx(tx, eventType, enums.AggregateOrder, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check queued order events")
		}
		if queued {
			accepted.Duplicate = true
			return nil
		}

		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Role: actor.Role, ID: actor.ID},
			Data:          data,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"event_type": eventType,
		"duplicate":  accepted.Duplicate,
	})
	c.logg.Info(logCtx, "order event requested")
	return accepted, nil
}
