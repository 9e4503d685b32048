package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"doc-approval-engine/internal/domain"
)

const (
	TransitionsTopic = "approval.transitions"
	EscalationsTopic = "approval.escalations"

	EventTypeMetadataKey = "event_type"
	DocumentMetadataKey  = "document_id"
)

type TransitionHandler func(ctx context.Context, ev domain.TransitionEvent) error

type EscalationHandler func(ctx context.Context, ev domain.EscalationEvent) error

// Bus carries lifecycle events over a watermill publisher and subscriber.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{publisher: pub, subscriber: sub, logger: logger}
}

func (b *Bus) PublishTransition(_ context.Context, ev domain.TransitionEvent) error {
	return b.publish(TransitionsTopic, "transition."+string(ev.Event), ev.DocumentID, ev)
}

func (b *Bus) PublishEscalation(_ context.Context, ev domain.EscalationEvent) error {
	return b.publish(EscalationsTopic, "escalation."+string(ev.Action), ev.DocumentID, ev)
}

func (b *Bus) publish(topic, eventType, documentID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(EventTypeMetadataKey, eventType)
	msg.Metadata.Set(DocumentMetadataKey, documentID)
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// SubscribeTransitions dispatches transition messages to h until ctx ends.
// Messages h fails on are nacked for redelivery.
func (b *Bus) SubscribeTransitions(ctx context.Context, h TransitionHandler) error {
	return subscribe(ctx, b, TransitionsTopic, func(ctx context.Context, payload []byte) error {
		var ev domain.TransitionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return h(ctx, ev)
	})
}

func (b *Bus) SubscribeEscalations(ctx context.Context, h EscalationHandler) error {
	return subscribe(ctx, b, EscalationsTopic, func(ctx context.Context, payload []byte) error {
		var ev domain.EscalationEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return h(ctx, ev)
	})
}

func subscribe(ctx context.Context, b *Bus, topic string, handle func(context.Context, []byte) error) error {
	messages, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	go func() {
		for msg := range messages {
			if err := handle(msg.Context(), msg.Payload); err != nil {
				b.logger.Warn("event handler failed",
					"topic", topic,
					"event_type", msg.Metadata.Get(EventTypeMetadataKey),
					"document_id", msg.Metadata.Get(DocumentMetadataKey),
					"error", err,
				)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if b.subscriber != nil && any(b.subscriber) != any(b.publisher) {
		return b.subscriber.Close()
	}
	return nil
}
