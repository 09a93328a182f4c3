package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers email over SMTP.
type SMTPSender struct {
	dialer mailDialer
	from   string
}

// NewSMTPSender creates an SMTPSender. A new connection is dialled per message.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return newSMTPSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From)
}

func newSMTPSender(d mailDialer, from string) *SMTPSender {
	return &SMTPSender{dialer: d, from: from}
}

// Send builds a MIME message and sends it. gomail has no context support, so
// ctx is only checked before dialling.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, brandName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}
