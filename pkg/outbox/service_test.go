package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	orderID := uuid.New()
	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{Role: "driver"},
		Data:          map[string]string{"order_id": orderID.String()},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, 1, env.Version)
	require.Equal(t, rows[0].ID.String(), env.EventID)
	require.Equal(t, "driver", env.Actor.Role)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, orderID.String(), data["order_id"])
}

func TestEmitRejectsUnknownTypeAndMissingTx(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCompleted}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "bogus"}))
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	event := DomainEvent{
		EventType:     enums.EventOrderPaymentSuccessful,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          struct{}{},
	}

	require.NoError(t, svc.EmitIfNotExists(context.Background(), conn, event))
	require.NoError(t, svc.EmitIfNotExists(context.Background(), conn, event))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
			EventType:     enums.EventOrderDispatched,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("unavailable")))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 5))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, rows[1].ID, pending[0].ID)
	require.Equal(t, 1, pending[0].AttemptCount)
	require.Equal(t, "unavailable", *pending[0].LastError)
}

func TestInFlightIgnoresDeadLetteredEvents(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	cartVendorID := uuid.New()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderProcessed,
		AggregateType: enums.AggregateCartVendor,
		AggregateID:   cartVendorID,
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, event))

	inFlight, err := repo.InFlightTx(conn, enums.EventOrderProcessed, enums.AggregateCartVendor, cartVendorID)
	require.NoError(t, err)
	require.True(t, inFlight)

	entry := NewDLQEntry(event, enums.OutboxDLQReasonNonRetryable, errors.New("INVALID_COUPON: used up"), 1)
	require.NoError(t, dlq.Insert(context.Background(), entry))

	inFlight, err = repo.InFlightTx(conn, enums.EventOrderProcessed, enums.AggregateCartVendor, cartVendorID)
	require.NoError(t, err)
	require.False(t, inFlight)

	exists, err := repo.ExistsTx(conn, enums.EventOrderProcessed, enums.AggregateCartVendor, cartVendorID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDLQRepository(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}

	entry := NewDLQEntry(event, enums.OutboxDLQReasonNonRetryable, errors.New("INVALID_TRANSITION: nope"), 1)
	require.NoError(t, dlq.Insert(context.Background(), entry))

	found, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, found.ErrorReason)
	require.Equal(t, "INVALID_TRANSITION: nope", *found.ErrorMessage)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	list, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
