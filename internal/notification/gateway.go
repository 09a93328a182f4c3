// Package notification delivers the transactional emails that carry
// one-time codes.
package notification

import (
	"context"
	"fmt"
)

// Gateway sends the verification and password reset emails. The code is
// passed in plaintext and must not be logged.
type Gateway interface {
	SendVerificationEmail(ctx context.Context, to, code string) error
	SendPasswordResetEmail(ctx context.Context, to, code string) error
}

// Message is a rendered email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers a rendered message. Implementations are the delivery
// drivers (log, SMTP, Kafka, AMQP).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders emails and hands them to a Sender.
type Mailer struct {
	sender Sender
}

// NewMailer creates a Gateway on top of sender.
func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// SendVerificationEmail renders and sends the email verification code.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, code string) error {
	msg, err := render(verificationEmail, to, code)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// SendPasswordResetEmail renders and sends the password reset code.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, code string) error {
	msg, err := render(passwordResetEmail, to, code)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}
