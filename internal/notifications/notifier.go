package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	mlpubsub "github.com/angelmondragon/marketledger-backend/pkg/pubsub"
)

const publishTimeout = 10 * time.Second

// Notifier delivers messages. Callers invoke it only after their
// transaction committed.
type Notifier interface {
	Notify(ctx context.Context, msgs ...Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msgs ...Message) error

func (f NotifierFunc) Notify(ctx context.Context, msgs ...Message) error {
	return f(ctx, msgs...)
}

// ChannelHandler delivers a message over one channel.
type ChannelHandler interface {
	Deliver(ctx context.Context, msg Message) error
}

// ChannelHandlerFunc adapts a function to ChannelHandler.
type ChannelHandlerFunc func(ctx context.Context, msg Message) error

func (f ChannelHandlerFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Dispatcher routes each message to the handler registered for every channel it names.
type Dispatcher struct {
	handlers map[enums.NotificationChannel]ChannelHandler
}

func NewDispatcher(handlers map[enums.NotificationChannel]ChannelHandler) (*Dispatcher, error) {
	if len(handlers) == 0 {
		return nil, errors.New("at least one channel handler required")
	}
	table := make(map[enums.NotificationChannel]ChannelHandler, len(handlers))
	for channel, handler := range handlers {
		if !channel.IsValid() {
			return nil, fmt.Errorf("invalid notification channel %q", channel)
		}
		if handler == nil {
			return nil, fmt.Errorf("handler for channel %q is nil", channel)
		}
		table[channel] = handler
	}
	return &Dispatcher{handlers: table}, nil
}

// Notify attempts every channel of every message and returns the combined failures.
func (d *Dispatcher) Notify(ctx context.Context, msgs ...Message) error {
	var errs error
	for _, msg := range msgs {
		if err := msg.Recipient.Validate(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, channel := range msg.channels() {
			handler, ok := d.handlers[channel]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("no handler for channel %q", channel))
				continue
			}
			if err := handler.Deliver(ctx, msg); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", channel, msg.Kind, err))
			}
		}
	}
	return errs
}

// BestEffort notifies and logs failures at warn. Financial state is already
// committed when it runs, so nothing is returned.
func BestEffort(ctx context.Context, n Notifier, logg *logger.Logger, msgs ...Message) {
	if n == nil || len(msgs) == 0 {
		return
	}
	if err := n.Notify(ctx, msgs...); err != nil && logg != nil {
		logCtx := logg.WithField(ctx, "error", err.Error())
		logg.Warn(logCtx, "notification delivery failed")
	}
}

// InAppHandler persists the message as a notifications row.
type InAppHandler struct {
	repo Repository
}

func NewInAppHandler(repo Repository) (*InAppHandler, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return &InAppHandler{repo: repo}, nil
}

func (h *InAppHandler) Deliver(ctx context.Context, msg Message) error {
	var data json.RawMessage
	if len(msg.Data) > 0 {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return err
		}
		data = raw
	}
	return h.repo.Create(ctx, &models.Notification{
		RecipientType: msg.Recipient.Type,
		RecipientID:   msg.Recipient.ID,
		Kind:          msg.Kind,
		Title:         msg.Title,
		Body:          msg.Body,
		Data:          data,
		CreatedAt:     time.Now().UTC(),
	})
}

// deliveryRequest is the body published for the external push/email sender.
type deliveryRequest struct {
	Channel   enums.NotificationChannel `json:"channel"`
	Recipient Recipient                 `json:"recipient"`
	Kind      enums.NotificationKind    `json:"kind"`
	Title     string                    `json:"title"`
	Body      string                    `json:"body"`
	Data      map[string]any            `json:"data,omitempty"`
}

// TopicHandler hands push or email deliveries to the notification topic.
type TopicHandler struct {
	channel   enums.NotificationChannel
	publisher mlpubsub.Publisher
}

func NewTopicHandler(channel enums.NotificationChannel, publisher mlpubsub.Publisher) (*TopicHandler, error) {
	if !channel.IsValid() {
		return nil, fmt.Errorf("invalid notification channel %q", channel)
	}
	if publisher == nil {
		return nil, errors.New("notification publisher required")
	}
	return &TopicHandler{channel: channel, publisher: publisher}, nil
}

func (h *TopicHandler) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(deliveryRequest{
		Channel:   h.channel,
		Recipient: msg.Recipient,
		Kind:      msg.Kind,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      msg.Data,
	})
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := h.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"channel":        string(h.channel),
			"kind":           string(msg.Kind),
			"recipient_type": string(msg.Recipient.Type),
		},
	})
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	_, err = result.Get(publishCtx)
	return err
}

// NewDefaultDispatcher wires in_app to the database and push/email to the
// notification topic.
func NewDefaultDispatcher(repo Repository, publisher mlpubsub.Publisher) (*Dispatcher, error) {
	inApp, err := NewInAppHandler(repo)
	if err != nil {
		return nil, err
	}
	handlers := map[enums.NotificationChannel]ChannelHandler{
		enums.NotificationChannelInApp: inApp,
	}
	for _, channel := range []enums.NotificationChannel{enums.NotificationChannelPush, enums.NotificationChannelEmail} {
		handler, err := NewTopicHandler(channel, publisher)
		if err != nil {
			return nil, err
		}
		handlers[channel] = handler
	}
	return NewDispatcher(handlers)
}
