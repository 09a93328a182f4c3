package notification

import (
	"context"
	"fmt"

	pkgkafka "github.com/utafrali/quickbite-auth/pkg/kafka"
)

// TopicEmailRequested carries rendered emails for an external mail worker.
const TopicEmailRequested = "quickbite.notification.email"

const (
	eventTypeEmailRequested = "notification.email.requested"
	aggregateTypeEmail      = "email"
	sourceAuthService       = "auth-service"
)

// EventPublisher is the subset of *pkgkafka.Producer used here.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// KafkaSender publishes each message to TopicEmailRequested, keyed by
// recipient.
type KafkaSender struct {
	producer EventPublisher
}

// NewKafkaSender creates a KafkaSender.
func NewKafkaSender(producer EventPublisher) *KafkaSender {
	return &KafkaSender{producer: producer}
}

// Send publishes msg. Success means the broker accepted it, not that it
// was delivered.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	ev, err := pkgkafka.NewEvent(eventTypeEmailRequested, msg.To, aggregateTypeEmail, sourceAuthService, msg)
	if err != nil {
		return fmt.Errorf("create email event: %w", err)
	}
	if err := s.producer.Publish(ctx, TopicEmailRequested, ev); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	return nil
}
