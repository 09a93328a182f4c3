package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/quickbite-auth/internal/domain"
	pkgkafka "github.com/utafrali/quickbite-auth/pkg/kafka"
)

// Kafka topic constants for auth events.
const (
	TopicUserRegistered    = "quickbite.user.registered"
	TopicUserEmailVerified = "quickbite.user.email_verified"
	TopicUserPasswordReset = "quickbite.user.password_reset"
)

// AggregateTypeUser is the aggregate type of every auth event.
const AggregateTypeUser = "user"

// SourceAuthService identifies events originating from this service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// UserEmailVerifiedData is the payload for a user.email_verified event.
type UserEmailVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserPasswordResetData is the payload for a user.password_reset event.
type UserPasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Publisher is the subset of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes auth events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}

// PublishUserEmailVerified publishes a user.email_verified event.
func (p *Producer) PublishUserEmailVerified(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserEmailVerified, user.ID, UserEmailVerifiedData{
		UserID: user.ID,
		Email:  user.Email,
	})
}

// PublishUserPasswordReset publishes a user.password_reset event.
func (p *Producer) PublishUserPasswordReset(ctx context.Context, userID, email string) error {
	return p.publish(ctx, TopicUserPasswordReset, userID, UserPasswordResetData{
		UserID: userID,
		Email:  email,
	})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published auth event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}
