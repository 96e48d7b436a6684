package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventPublisher publishes events to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

// EventSubscriber delivers raw bus messages for a topic. Every message must be Acked or Nacked.
type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Bus is the in-process event stream. Publish blocks until every local
// subscriber has acked, so a caller observes the effects of its event.
// When a forwarder is set, events are also copied to it (Kafka).
type Bus struct {
	local       *gochannel.GoChannel
	forward     message.Publisher
	topicPrefix string
	logger      *slog.Logger

	closed atomic.Bool
}

type BusOption func(*Bus)

// WithForwarder copies every published event to pub under prefix+topic.
func WithForwarder(pub message.Publisher, prefix string) BusOption {
	return func(b *Bus) {
		b.forward = pub
		b.topicPrefix = prefix
	}
}

func NewBus(logger *slog.Logger, opts ...BusOption) *Bus {
	b := &Bus{
		local: gochannel.NewGoChannel(gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NewSlogLogger(logger)),
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, topic string, event *Event) error {
	if b.closed.Load() {
		return fmt.Errorf("event bus closed")
	}

	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)

	if b.forward != nil {
		if err := b.forward.Publish(b.topicPrefix+topic, msg.Copy()); err != nil {
			// External consumers are best-effort; local delivery still happens.
			b.logger.Error("Failed to forward event", "error", err, "topic", topic, "event_type", event.Type)
		}
	}

	if err := b.local.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	b.logger.Debug("Event published", "topic", topic, "event_type", event.Type, "event_id", event.ID)
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.local.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if err := b.local.Close(); err != nil {
		firstErr = err
	}
	if b.forward != nil {
		if err := b.forward.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
