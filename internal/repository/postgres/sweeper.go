package postgres

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredSessionDeleter is implemented by SessionRepository.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionSweeper periodically deletes expired sessions.
type SessionSweeper struct {
	store    ExpiredSessionDeleter
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionSweeper creates a sweeper that runs every interval.
func NewSessionSweeper(store ExpiredSessionDeleter, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	return &SessionSweeper{store: store, interval: interval, now: time.Now, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single deletion pass. Errors are logged.
func (s *SessionSweeper) Sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "failed to sweep expired sessions", slog.String("error", err.Error()))
		}
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", slog.Int64("count", n))
	}
}
