package orders

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

func newCommands(t *testing.T) (*gorm.DB, Service, *Commands) {
	t.Helper()
	conn, svc := newOrderService(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	repo := outbox.NewRepository(conn)
	cmds, err := NewCommands(CommandParams{
		DB:     db.Wrap(conn),
		Orders: svc,
		Outbox: outbox.NewService(repo, logg),
		Events: repo,
		Logger: logg,
	})
	require.NoError(t, err)
	return conn, svc, cmds
}

func queued(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType, orderID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ? AND aggregate_id = ?", eventType, orderID).Find(&rows).Error)
	return rows
}

func TestConfirmPaymentQueuesOnce(t *testing.T) {
	conn, svc, cmds := newCommands(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, conn, sampleInput())
	require.NoError(t, err)

	processorID := "psp-1"
	accepted, err := cmds.ConfirmPayment(ctx, Actor{Role: "system"}, order.ID, &processorID)
	require.NoError(t, err)
	assert.False(t, accepted.Duplicate)
	assert.Equal(t, enums.OrderStatusPending, accepted.Status)

	rows := queued(t, conn, enums.EventOrderPaymentSuccessful, order.ID)
	require.Len(t, rows, 1)
	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.NotNil(t, env.Actor)
	assert.Equal(t, "system", env.Actor.Role)
	var data payloads.OrderPaymentSuccessfulEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, order.ID, data.OrderID)
	require.NotNil(t, data.ProcessorTransactionID)
	assert.Equal(t, "psp-1", *data.ProcessorTransactionID)

	again, err := cmds.ConfirmPayment(ctx, Actor{Role: "system"}, order.ID, &processorID)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Len(t, queued(t, conn, enums.EventOrderPaymentSuccessful, order.ID), 1)
}

func TestCommandsRejectIllegalTransitions(t *testing.T) {
	conn, svc, cmds := newCommands(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, conn, sampleInput())
	require.NoError(t, err)

	_, err = cmds.Dispatch(ctx, Actor{Role: "vendor"}, order.ID, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	_, err = cmds.Complete(ctx, Actor{Role: "vendor"}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCancelPendingOrderQueuesReason(t *testing.T) {
	conn, svc, cmds := newCommands(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, conn, sampleInput())
	require.NoError(t, err)

	customer := order.UserID
	_, err = cmds.Cancel(ctx, Actor{Role: "customer", ID: &customer}, order.ID, "changed my mind")
	require.NoError(t, err)

	rows := queued(t, conn, enums.EventOrderCancelled, order.ID)
	require.Len(t, rows, 1)
	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	var data payloads.OrderCancelledEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "changed my mind", data.Reason)
}

func TestDispatchPaidOrderAndAdvance(t *testing.T) {
	conn, svc, cmds := newCommands(t)
	ctx := context.Background()
	input := sampleInput()
	input.InitialStatus = enums.OrderStatusPaid
	input.PaidFromWallet = true
	order, err := svc.Create(ctx, conn, input)
	require.NoError(t, err)

	advanced, err := cmds.Advance(ctx, order.ID, enums.OrderStatusReadyForPickup)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReadyForPickup, advanced.Status)

	driver := uuid.New()
	accepted, err := cmds.Dispatch(ctx, Actor{Role: "vendor"}, order.ID, &driver)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReadyForPickup, accepted.Status)
	assert.Len(t, queued(t, conn, enums.EventOrderDispatched, order.ID), 1)

	_, err = cmds.Advance(ctx, order.ID, enums.OrderStatusCompleted)
	assert.Error(t, err)
}

func TestCommandsUnknownOrder(t *testing.T) {
	_, _, cmds := newCommands(t)
	_, err := cmds.Complete(context.Background(), Actor{Role: "vendor"}, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = cmds.Complete(context.Background(), Actor{Role: "vendor"}, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
