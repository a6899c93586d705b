package listeners

import (
	"context"
	"fmt"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

// HandlerFunc handles one decoded event payload.
type HandlerFunc func(ctx context.Context, payload any) error

// Dispatcher maps lifecycle event types to exactly one handler each.
type Dispatcher struct {
	handlers map[enums.OutboxEventType]HandlerFunc
}

// NewDispatcher builds the lifecycle handler table.
func NewDispatcher(l *Listeners) *Dispatcher {
	return &Dispatcher{handlers: map[enums.OutboxEventType]HandlerFunc{
		enums.EventOrderProcessed:         typed(l.OrderProcessed),
		enums.EventOrderPaymentSuccessful: typed(l.OrderPaymentSuccessful),
		enums.EventOrderDispatched:        typed(l.OrderDispatched),
		enums.EventOrderCompleted:         typed(l.OrderCompleted),
		enums.EventOrderCancelled:         typed(l.OrderCancelled),
	}}
}

// Handles reports whether eventType has a handler.
func (d *Dispatcher) Handles(eventType enums.OutboxEventType) bool {
	_, ok := d.handlers[eventType]
	return ok
}

func (d *Dispatcher) Dispatch(ctx context.Context, eventType enums.OutboxEventType, payload any) error {
	handler, ok := d.handlers[eventType]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "no handler registered for %s", eventType)
	}
	return handler(ctx, payload)
}

func typed[T any](fn func(context.Context, *T) error) HandlerFunc {
	return func(ctx context.Context, payload any) error {
		event, ok := payload.(*T)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unexpected payload %T", payload))
		}
		return fn(ctx, event)
	}
}
