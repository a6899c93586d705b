package pubsub

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// Publisher is the publish surface used by the outbox relay and the
// notification sink. Tests substitute fakes for it.
type Publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult
}

// PublishResult resolves to the server-assigned message id.
type PublishResult interface {
	Get(ctx context.Context) (string, error)
}

// AdaptPublisher wraps a v2 publisher handle. A nil handle yields nil.
func AdaptPublisher(p *gcppubsub.Publisher) Publisher {
	if p == nil {
		return nil
	}
	return &topicPublisher{publisher: p}
}

type topicPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p *topicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult {
	if p == nil || p.publisher == nil {
		return nil
	}
	return &publishResult{result: p.publisher.Publish(ctx, msg)}
}

type publishResult struct {
	result *gcppubsub.PublishResult
}

func (r *publishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.result == nil {
		return "", errors.New("publish result is nil")
	}
	return r.result.Get(ctx)
}
