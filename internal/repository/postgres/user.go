package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/quickbite-auth/internal/domain"
	"github.com/utafrali/quickbite-auth/pkg/database"
	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

const userColumns = `id, email, password_hash, name, phone, role, email_verified,
	verification_code_hash, reset_code_hash, reset_code_expires_at, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user as given. Roles outside domain.ValidRoles are
// rejected before reaching the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	if !domain.IsValidRole(u.Role) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown role %q", u.Role))
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "CreateUser", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Name,
		u.Phone,
		u.Role,
		u.EmailVerified,
		nullable(u.VerificationCodeHash),
		nullable(u.ResetCodeHash),
		u.ResetCodeExpiresAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, "GetUserByEmail", query, domain.NormalizeEmail(email))
}

// SetVerificationCode replaces the digest while the email is unverified.
func (r *UserRepository) SetVerificationCode(ctx context.Context, id, codeHash string, at time.Time) error {
	query := `
		UPDATE users
		SET verification_code_hash = $2, updated_at = $3
		WHERE id = $1 AND email_verified = FALSE`

	return r.execGuarded(ctx, "SetVerificationCode", query, domain.ErrAlreadyVerified,
		id, codeHash, at.UTC())
}

// MarkEmailVerified flips email_verified only if codeHash is still the
// stored digest.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id, codeHash string, at time.Time) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, verification_code_hash = NULL, updated_at = $3
		WHERE id = $1 AND verification_code_hash = $2`

	return r.execGuarded(ctx, "MarkEmailVerified", query, domain.ErrInvalidCode,
		id, codeHash, at.UTC())
}

// SetResetCode stores a new reset code digest and its expiry.
func (r *UserRepository) SetResetCode(ctx context.Context, id, codeHash string, expiresAt, at time.Time) error {
	query := `
		UPDATE users
		SET reset_code_hash = $2, reset_code_expires_at = $3, updated_at = $4
		WHERE id = $1`

	return r.execGuarded(ctx, "SetResetCode", query, apperrors.NotFound("user", id),
		id, codeHash, expiresAt.UTC(), at.UTC())
}

// ConsumeResetCode swaps the password and clears the code in a single
// conditional UPDATE. Of two concurrent calls with the same code only one
// matches the row.
func (r *UserRepository) ConsumeResetCode(ctx context.Context, id, codeHash, passwordHash string, at time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $4, reset_code_hash = NULL, reset_code_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND reset_code_hash = $2 AND reset_code_expires_at > $3`

	return r.execGuarded(ctx, "ConsumeResetCode", query, domain.ErrInvalidOrExpiredCode,
		id, codeHash, at.UTC(), passwordHash)
}

// execGuarded runs a single-row UPDATE and returns noRows when its WHERE
// clause matched nothing.
func (r *UserRepository) execGuarded(ctx context.Context, operation, query string, noRows error, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, operation, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if ct.RowsAffected() == 0 {
		return noRows
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, operation, query)
	defer func() { end(err) }()

	var u domain.User
	var verifyHash, resetHash *string
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&u.Role,
		&u.EmailVerified,
		&verifyHash,
		&resetHash,
		&u.ResetCodeExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if verifyHash != nil {
		u.VerificationCodeHash = *verifyHash
	}
	if resetHash != nil {
		u.ResetCodeHash = *resetHash
	}
	return &u, nil
}

// nullable maps an empty digest to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}
