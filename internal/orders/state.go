package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

// transitions is the order lifecycle graph. Fulfillment sub-states sit between
// PAID and COMPLETED; COMPLETED, CANCELLED and FAILED have no exits.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusPaid,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusDispatched,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusReadyForPickup: {
		enums.OrderStatusPickedUp,
		enums.OrderStatusDispatched,
	},
	enums.OrderStatusPickedUp: {
		enums.OrderStatusOutForDelivery,
	},
	enums.OrderStatusDispatched: {
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted,
	},
}

// fulfillmentStates are the sub-states Advance may move an order into.
var fulfillmentStates = map[enums.OrderStatus]bool{
	enums.OrderStatusReadyForPickup: true,
	enums.OrderStatusPickedUp:       true,
	enums.OrderStatusOutForDelivery: true,
	enums.OrderStatusDelivered:      true,
}

// driverAssignable lists the statuses in which a driver may take the order.
var driverAssignable = []enums.OrderStatus{
	enums.OrderStatusPaid,
	enums.OrderStatusReadyForPickup,
	enums.OrderStatusDispatched,
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition reports an attempted move off the lifecycle graph.
func ErrInvalidTransition(orderID uuid.UUID, from, to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "order cannot move from %s to %s", from, to).
		WithDetails(map[string]any{
			"order_id": orderID.String(),
			"from":     from,
			"to":       to,
		})
}

// CheckTransition returns ErrInvalidTransition unless from -> to is legal.
func CheckTransition(orderID uuid.UUID, from, to enums.OrderStatus) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition(orderID, from, to)
	}
	return nil
}
