package app

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/quickbite-auth/internal/config"
	"github.com/utafrali/quickbite-auth/internal/notification"
)

func newTestApp(driver string) *App {
	return &App{
		cfg: &config.Config{
			NotificationDriver: driver,
			SMTPHost:           "smtp.example.com",
			SMTPPort:           587,
			SMTPFrom:           "noreply@quickbite.com",
		},
		logger: slog.New(slog.DiscardHandler),
	}
}

func TestNewSender_Log(t *testing.T) {
	a := newTestApp(config.NotificationLog)

	sender, err := a.newSender()

	require.NoError(t, err)
	assert.IsType(t, &notification.LogSender{}, sender)
}

func TestNewSender_SMTPIsWrappedInBreaker(t *testing.T) {
	a := newTestApp(config.NotificationSMTP)

	sender, err := a.newSender()

	require.NoError(t, err)
	assert.IsType(t, &notification.BreakerSender{}, sender)
}

func TestNewSender_KafkaRequiresProducer(t *testing.T) {
	a := newTestApp(config.NotificationKafka)

	_, err := a.newSender()

	assert.Error(t, err)
}

func TestNewSender_UnknownDriver(t *testing.T) {
	a := newTestApp("pigeon")

	_, err := a.newSender()

	assert.ErrorContains(t, err, "pigeon")
}

func TestRelease_PartialApp(t *testing.T) {
	var buf bytes.Buffer
	a := &App{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	assert.NoError(t, a.release())
	assert.NoError(t, a.release())
	assert.Empty(t, buf.String())
}
