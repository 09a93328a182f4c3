package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/quickbite-auth/internal/domain"
	"github.com/utafrali/quickbite-auth/internal/repository"
	"github.com/utafrali/quickbite-auth/pkg/database"
	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

// SessionRepository implements repository.SessionStore using PostgreSQL.
// Expired rows are invisible to Consume and removed by DeleteExpired.
type SessionRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewSessionRepository creates a new PostgreSQL-backed session store. A nil
// clock uses time.Now.
func NewSessionRepository(db database.DBTX, now func() time.Time) *SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &SessionRepository{db: db, now: now}
}

// Put stores the token digest.
func (r *SessionRepository) Put(ctx context.Context, userID, token string, expiresAt time.Time) (err error) {
	query := `
		INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "PutSession", query)
	defer func() { end(err) }()

	now := r.now()
	if !expiresAt.After(now) {
		return repository.ErrSessionExpired
	}

	_, err = r.db.Exec(ctx, query, repository.TokenDigest(token), userID, expiresAt.UTC(), now.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Consume deletes the live session for token in a single statement and
// returns its user ID. Two concurrent calls for the same token cannot both
// see the row.
func (r *SessionRepository) Consume(ctx context.Context, token string) (_ string, err error) {
	query := `
		DELETE FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING user_id`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "ConsumeSession", query)
	defer func() { end(err) }()

	var userID string
	err = r.db.QueryRow(ctx, query, repository.TokenDigest(token), r.now().UTC()).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("session", "token")
		}
		return "", fmt.Errorf("consume session: %w", err)
	}

	return userID, nil
}

// RevokeAll deletes every session belonging to the user.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID string) (err error) {
	query := `DELETE FROM sessions WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "RevokeUserSessions", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now and
// returns how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	query := `DELETE FROM sessions WHERE expires_at <= $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "DeleteExpiredSessions", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}
