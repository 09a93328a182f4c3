package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/utafrali/quickbite-auth/internal/domain"
)

// ErrSessionExpired is returned by SessionStore.Put for an expiry that is
// not in the future.
var ErrSessionExpired = errors.New("session already expired")

// UserRepository defines the interface for credential persistence.
// Implementations store the user exactly as given, look emails up
// case-insensitively and return domain.ErrEmailExists on a duplicate email.
//
// Writes after Create touch only the columns of one flow, so concurrent
// flows on the same user never overwrite each other's fields. at is stored
// as the new UpdatedAt.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetVerificationCode replaces the verification code digest of an
	// unverified user. It returns domain.ErrAlreadyVerified when the user is
	// verified or gone.
	SetVerificationCode(ctx context.Context, id, codeHash string, at time.Time) error

	// MarkEmailVerified verifies the email and drops the code, provided the
	// stored digest still equals codeHash. Otherwise it returns
	// domain.ErrInvalidCode.
	MarkEmailVerified(ctx context.Context, id, codeHash string, at time.Time) error

	// SetResetCode replaces the outstanding password reset code.
	SetResetCode(ctx context.Context, id, codeHash string, expiresAt, at time.Time) error

	// ConsumeResetCode sets the new password hash and clears the reset code
	// in one step, provided the stored digest equals codeHash and has not
	// expired at at. Otherwise it returns domain.ErrInvalidOrExpiredCode, so
	// a code can be redeemed only once.
	ConsumeResetCode(ctx context.Context, id, codeHash, passwordHash string, at time.Time) error
}

// SessionStore persists refresh-token sessions. Every stored token can be
// consumed at most once, and expired sessions are never returned.
type SessionStore interface {
	// Put stores a session for token. It returns domain.ErrSessionConflict
	// if the token is already stored and ErrSessionExpired if expiresAt is
	// not after the store's current time.
	Put(ctx context.Context, userID, token string, expiresAt time.Time) error

	// Consume atomically removes the session for token and returns its
	// owner. A missing, expired or already consumed token yields an error
	// wrapping apperrors.ErrNotFound.
	Consume(ctx context.Context, token string) (string, error)

	// RevokeAll removes every session of the user.
	RevokeAll(ctx context.Context, userID string) error
}

// TokenDigest returns the hex SHA-256 of a refresh token. Stores key
// sessions by this value so plaintext tokens are never persisted.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
