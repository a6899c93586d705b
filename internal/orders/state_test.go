package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]enums.OrderStatus{
		{enums.OrderStatusPending, enums.OrderStatusPaid},
		{enums.OrderStatusPending, enums.OrderStatusCancelled},
		{enums.OrderStatusPending, enums.OrderStatusFailed},
		{enums.OrderStatusPaid, enums.OrderStatusDispatched},
		{enums.OrderStatusPaid, enums.OrderStatusCancelled},
		{enums.OrderStatusPaid, enums.OrderStatusReadyForPickup},
		{enums.OrderStatusReadyForPickup, enums.OrderStatusPickedUp},
		{enums.OrderStatusReadyForPickup, enums.OrderStatusDispatched},
		{enums.OrderStatusPickedUp, enums.OrderStatusOutForDelivery},
		{enums.OrderStatusDispatched, enums.OrderStatusCompleted},
		{enums.OrderStatusDispatched, enums.OrderStatusOutForDelivery},
		{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered},
		{enums.OrderStatusDelivered, enums.OrderStatusCompleted},
	}
	for _, pair := range legal {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	illegal := [][2]enums.OrderStatus{
		{enums.OrderStatusPending, enums.OrderStatusCompleted},
		{enums.OrderStatusPending, enums.OrderStatusDispatched},
		{enums.OrderStatusPaid, enums.OrderStatusCompleted},
		{enums.OrderStatusPaid, enums.OrderStatusFailed},
		{enums.OrderStatusDispatched, enums.OrderStatusCancelled},
		{enums.OrderStatusCompleted, enums.OrderStatusCancelled},
		{enums.OrderStatusCancelled, enums.OrderStatusPaid},
		{enums.OrderStatusFailed, enums.OrderStatusPaid},
		{enums.OrderStatusPaid, enums.OrderStatusPaid},
	}
	for _, pair := range illegal {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled, enums.OrderStatusFailed} {
		assert.True(t, status.IsTerminal())
		assert.Empty(t, transitions[status])
	}
}

func TestCheckTransitionError(t *testing.T) {
	err := CheckTransition(uuid.New(), enums.OrderStatusPending, enums.OrderStatusCompleted)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.NoError(t, CheckTransition(uuid.New(), enums.OrderStatusPending, enums.OrderStatusPaid))
}
