package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	mlpubsub "github.com/angelmondragon/marketledger-backend/pkg/pubsub"
)

type recordingPublisher struct {
	sent []*gcppubsub.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *gcppubsub.Message) mlpubsub.PublishResult {
	p.sent = append(p.sent, msg)
	return staticResult{err: p.err}
}

type staticResult struct{ err error }

func (r staticResult) Get(context.Context) (string, error) { return "msg-1", r.err }

func TestDispatcherRoutesEachChannel(t *testing.T) {
	repo := &fakeRepository{}
	pub := &recordingPublisher{}
	dispatcher, err := NewDefaultDispatcher(repo, pub)
	require.NoError(t, err)

	customerID := uuid.New()
	err = dispatcher.Notify(context.Background(), Message{
		Recipient: Customer(customerID),
		Kind:      enums.NotificationOrderDispatched,
		Title:     "Your order is on its way",
		Body:      "Share the code with your driver",
		Data:      map[string]any{"otp": "123456"},
		Channels: []enums.NotificationChannel{
			enums.NotificationChannelInApp,
			enums.NotificationChannelPush,
			enums.NotificationChannelEmail,
		},
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	row := repo.created[0]
	assert.Equal(t, enums.RecipientCustomer, row.RecipientType)
	assert.Equal(t, customerID, row.RecipientID)
	assert.JSONEq(t, `{"otp":"123456"}`, string(row.Data))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, "push", pub.sent[0].Attributes["channel"])
	assert.Equal(t, "email", pub.sent[1].Attributes["channel"])

	var body deliveryRequest
	require.NoError(t, json.Unmarshal(pub.sent[0].Data, &body))
	assert.Equal(t, enums.NotificationOrderDispatched, body.Kind)
	assert.Equal(t, customerID, body.Recipient.ID)
}

func TestDispatcherDefaultsChannelsAndCollectsFailures(t *testing.T) {
	repo := &fakeRepository{}
	pub := &recordingPublisher{err: errors.New("topic down")}
	dispatcher, err := NewDefaultDispatcher(repo, pub)
	require.NoError(t, err)

	err = dispatcher.Notify(context.Background(),
		Message{Recipient: Vendor(uuid.New()), Kind: enums.NotificationOrderSettled, Title: "t", Body: "b"},
		Message{Recipient: Recipient{Type: "store"}, Kind: enums.NotificationOrderSettled},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic down")
	assert.Contains(t, err.Error(), "invalid recipient type")
	// in-app still landed for the valid message
	assert.Len(t, repo.created, 1)
}

func TestDispatcherRejectsUnknownChannel(t *testing.T) {
	dispatcher, err := NewDispatcher(map[enums.NotificationChannel]ChannelHandler{
		enums.NotificationChannelInApp: ChannelHandlerFunc(func(context.Context, Message) error { return nil }),
	})
	require.NoError(t, err)

	err = dispatcher.Notify(context.Background(), Message{
		Recipient: Driver(uuid.New()),
		Channels:  []enums.NotificationChannel{enums.NotificationChannelEmail},
	})
	require.Error(t, err)

	_, err = NewDispatcher(map[enums.NotificationChannel]ChannelHandler{"sms": ChannelHandlerFunc(nil)})
	require.Error(t, err)
}

func TestBestEffortSwallowsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	failing := NotifierFunc(func(context.Context, ...Message) error { return errors.New("smtp refused") })

	BestEffort(context.Background(), failing, logg, Message{Recipient: Customer(uuid.New())})

	assert.Contains(t, buf.String(), "notification delivery failed")
	assert.Contains(t, buf.String(), "smtp refused")
}

func TestInAppRepositoryListAndMarkRead(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	handler, err := NewInAppHandler(repo)
	require.NoError(t, err)

	customer := Customer(uuid.New())
	for _, kind := range []enums.NotificationKind{enums.NotificationOrderPlaced, enums.NotificationOrderPaid, enums.NotificationOrderCompleted} {
		require.NoError(t, handler.Deliver(ctx, Message{Recipient: customer, Kind: kind, Title: string(kind), Body: "b"}))
	}
	require.NoError(t, handler.Deliver(ctx, Message{Recipient: Vendor(uuid.New()), Kind: enums.NotificationOrderReceived, Title: "x", Body: "y"}))

	svc, err := NewService(repo)
	require.NoError(t, err)

	page, err := svc.List(ctx, ListParams{Recipient: customer, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := svc.List(ctx, ListParams{Recipient: customer, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)

	require.NoError(t, svc.MarkRead(ctx, customer, page.Items[0].ID))
	count, err := svc.MarkAllRead(ctx, customer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	var unread int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("read_at IS NULL").Count(&unread).Error)
	assert.EqualValues(t, 1, unread)
}
