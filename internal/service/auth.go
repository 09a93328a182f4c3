package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/quickbite-auth/internal/auth"
	"github.com/utafrali/quickbite-auth/internal/domain"
	"github.com/utafrali/quickbite-auth/internal/notification"
	"github.com/utafrali/quickbite-auth/internal/otp"
	"github.com/utafrali/quickbite-auth/internal/repository"
	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
	"github.com/utafrali/quickbite-auth/pkg/validator"
)

// Name length bounds for registration.
const (
	nameMinLength = 2
	nameMaxLength = 50
)

// EventPublisher publishes auth events. Implemented by *event.Producer.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserEmailVerified(ctx context.Context, user *domain.User) error
	PublishUserPasswordReset(ctx context.Context, userID, email string) error
}

// AuthService implements registration, login, token rotation and the
// one-time-code flows.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionStore
	codec    *auth.Codec
	codes    *otp.Issuer
	mailer   notification.Gateway
	hasher   PasswordHasher
	events   EventPublisher
	logger   *slog.Logger
	now      auth.Clock

	dummyOnce sync.Once
	dummyHash string
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock sets the time source used for sessions and reset codes. It
// should be the same clock the codec uses.
func WithClock(now auth.Clock) Option {
	return func(s *AuthService) { s.now = now }
}

// WithEvents enables auth event publishing.
func WithEvents(p EventPublisher) Option {
	return func(s *AuthService) { s.events = p }
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionStore,
	codec *auth.Codec,
	codes *otp.Issuer,
	mailer notification.Gateway,
	hasher PasswordHasher,
	logger *slog.Logger,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		codec:    codec,
		codes:    codes,
		mailer:   mailer,
		hasher:   hasher,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// --- Session Operations ---

// Register creates an account with the default role, starts a session and
// emails a verification code. A failed email does not fail registration.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (_ *domain.AuthResult, err error) {
	defer func() { observe(opRegister, err) }()

	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < nameMinLength || n > nameMaxLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("name must be between %d and %d characters", nameMinLength, nameMaxLength))
	}
	if err := validator.CheckPassword(input.Password); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.Issue()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:                   uuid.New().String(),
		Email:                email,
		PasswordHash:         passwordHash,
		Name:                 name,
		Phone:                strings.TrimSpace(input.Phone),
		Role:                 domain.DefaultRole,
		VerificationCodeHash: s.codes.Hash(code),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailExists) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, code); err != nil {
		notificationFailuresTotal.WithLabelValues(opRegister).Inc()
		s.logger.WarnContext(ctx, "failed to send verification email after registration",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.registered event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// Login checks the credentials and starts a new session. Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ *domain.AuthResult, err error) {
	defer func() { observe(opLogin, err) }()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		// Spend the same bcrypt time as a real comparison.
		_ = s.hasher.Compare(s.timingHash(), password)
		s.logger.WarnContext(ctx, "login attempt for unknown email",
			slog.String("email", domain.NormalizeEmail(email)),
		)
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "login attempt with wrong password",
			slog.String("user_id", user.ID),
		)
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a
// new pair is issued. A token can be rotated only once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ *domain.TokenPair, err error) {
	defer func() { observe(opRefresh, err) }()

	claims, err := s.codec.Verify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	userID, err := s.sessions.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "refresh token not found or already used",
				slog.String("user_id", claims.UserID),
			)
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("consume session: %w", err)
	}
	if userID != claims.UserID {
		s.logger.WarnContext(ctx, "refresh token owner mismatch",
			slog.String("user_id", claims.UserID),
			slog.String("session_user_id", userID),
		)
		return nil, domain.ErrInvalidToken
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens refreshed", slog.String("user_id", user.ID))
	return &tokens, nil
}

// Logout ends the session of refreshToken. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { observe(opLogout, err) }()

	userID, err := s.sessions.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "logout with unknown refresh token")
			return nil
		}
		return fmt.Errorf("consume session: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// GetProfile returns the user. Credential fields are never serialized.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, userID)
}

// --- One-Time Code Operations ---

// VerifyEmail marks the email verified when code matches the outstanding
// verification code. Unknown emails and wrong codes both fail with
// domain.ErrInvalidCode.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (err error) {
	defer func() { observe(opVerifyEmail, err) }()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "email verification for unknown email")
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	if !s.codes.Matches(code, user.VerificationCodeHash) {
		s.logger.WarnContext(ctx, "email verification failed", slog.String("user_id", user.ID))
		return domain.ErrInvalidCode
	}

	now := s.now().UTC()
	if err := s.users.MarkEmailVerified(ctx, user.ID, user.VerificationCodeHash, now); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			s.logger.WarnContext(ctx, "verification code replaced or already used", slog.String("user_id", user.ID))
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("mark email verified: %w", err)
	}
	user.MarkEmailVerified()
	user.UpdatedAt = now

	if s.events != nil {
		if err := s.events.PublishUserEmailVerified(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.email_verified event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	return nil
}

// ResendVerification replaces the verification code and emails it.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (err error) {
	defer func() { observe(opResendVerification, err) }()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("get user by email: %w", err)
	}
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}

	code, err := s.codes.Issue()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	digest := s.codes.Hash(code)
	if err := s.users.SetVerificationCode(ctx, user.ID, digest, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyVerified) {
			return domain.ErrAlreadyVerified
		}
		return fmt.Errorf("set verification code: %w", err)
	}
	user.VerificationCodeHash = digest
	user.UpdatedAt = now

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, code); err != nil {
		notificationFailuresTotal.WithLabelValues(opResendVerification).Inc()
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}

	s.logger.InfoContext(ctx, "verification code resent", slog.String("user_id", user.ID))
	return nil
}

// ForgotPassword emails a reset code valid for the issuer's reset window.
// Unknown emails succeed silently so the endpoint does not reveal which
// addresses are registered. For the same reason a failed email is only
// logged and counted, never returned.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { observe(opForgotPassword, err) }()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "password reset requested for unknown email",
				slog.String("email", domain.NormalizeEmail(email)),
			)
			return nil
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	code, err := s.codes.Issue()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	digest, expiresAt := s.codes.Hash(code), s.codes.ResetExpiry(now)
	if err := s.users.SetResetCode(ctx, user.ID, digest, expiresAt, now); err != nil {
		return fmt.Errorf("set reset code: %w", err)
	}
	user.SetResetCode(digest, expiresAt)
	user.UpdatedAt = now

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, code); err != nil {
		notificationFailuresTotal.WithLabelValues(opForgotPassword).Inc()
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.InfoContext(ctx, "password reset code sent", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword sets a new password when code matches the unexpired reset
// code, then revokes every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) (err error) {
	defer func() { observe(opResetPassword, err) }()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "password reset for unknown email")
			return domain.ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	now := s.now().UTC()
	if !user.ResetCodeActive(now) || !s.codes.Matches(code, user.ResetCodeHash) {
		s.logger.WarnContext(ctx, "password reset failed", slog.String("user_id", user.ID))
		return domain.ErrInvalidOrExpiredCode
	}
	if err := validator.CheckPassword(newPassword); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	// The row only changes if the code is still the stored one, so a code
	// redeemed or replaced since the read above is rejected here.
	if err := s.users.ConsumeResetCode(ctx, user.ID, user.ResetCodeHash, passwordHash, now); err != nil {
		if errors.Is(err, domain.ErrInvalidOrExpiredCode) {
			s.logger.WarnContext(ctx, "reset code replaced or already used", slog.String("user_id", user.ID))
			return domain.ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("consume reset code: %w", err)
	}
	user.PasswordHash = passwordHash
	user.ClearResetCode()
	user.UpdatedAt = now

	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishUserPasswordReset(ctx, user.ID, user.Email); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}

// --- Helpers ---

// startSession issues a token pair and stores the refresh token.
func (s *AuthService) startSession(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	tokens, err := s.codec.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.codec.TTL(domain.TokenKindRefresh))
	if err := s.sessions.Put(ctx, user.ID, tokens.RefreshToken, expiresAt); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store session: %w", err)
	}
	return tokens, nil
}

func (s *AuthService) getUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// timingHash returns a throwaway bcrypt hash compared against on unknown
// emails.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
