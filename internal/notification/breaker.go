package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects sends.
var ErrCircuitOpen = gobreaker.ErrOpenState

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "notification_breaker_state",
		Help: "Current state of the notification circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name string

	// MaxRequests is the number of trial sends allowed while half-open.
	MaxRequests uint32

	// Interval clears the failure counts while closed. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns defaults for the named driver.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerSender rejects sends for a while once the wrapped driver keeps
// failing.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSender wraps next with a circuit breaker.
func NewBreakerSender(next Sender, cfg BreakerConfig, logger *slog.Logger) *BreakerSender {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerSender{next: next, breaker: cb}
}

// Send forwards to the wrapped driver unless the breaker is open.
func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Send(ctx, msg)
	})
	return err
}

// State returns the current breaker state.
func (s *BreakerSender) State() gobreaker.State {
	return s.breaker.State()
}
