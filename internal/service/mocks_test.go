package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/quickbite-auth/internal/domain"
	"github.com/utafrali/quickbite-auth/internal/repository"
	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

// --- Mock implementations ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) SetVerificationCode(ctx context.Context, id, codeHash string, at time.Time) error {
	args := m.Called(ctx, id, codeHash, at)
	return args.Error(0)
}

func (m *mockUserRepository) MarkEmailVerified(ctx context.Context, id, codeHash string, at time.Time) error {
	args := m.Called(ctx, id, codeHash, at)
	return args.Error(0)
}

func (m *mockUserRepository) SetResetCode(ctx context.Context, id, codeHash string, expiresAt, at time.Time) error {
	args := m.Called(ctx, id, codeHash, expiresAt, at)
	return args.Error(0)
}

func (m *mockUserRepository) ConsumeResetCode(ctx context.Context, id, codeHash, passwordHash string, at time.Time) error {
	args := m.Called(ctx, id, codeHash, passwordHash, at)
	return args.Error(0)
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) Put(ctx context.Context, userID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, token, expiresAt)
	return args.Error(0)
}

func (m *mockSessionStore) Consume(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *mockSessionStore) RevokeAll(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SendVerificationEmail(ctx context.Context, to, code string) error {
	args := m.Called(ctx, to, code)
	return args.Error(0)
}

func (m *mockGateway) SendPasswordResetEmail(ctx context.Context, to, code string) error {
	args := m.Called(ctx, to, code)
	return args.Error(0)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishUserEmailVerified(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishUserPasswordReset(ctx context.Context, userID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

// memorySessions is a SessionStore with real consume-once semantics.
type memorySessions struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]domain.Session
}

var _ repository.SessionStore = (*memorySessions)(nil)

func newMemorySessions(now func() time.Time) *memorySessions {
	return &memorySessions{now: now, sessions: map[string]domain.Session{}}
}

func (m *memorySessions) Put(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := repository.TokenDigest(token)
	if _, ok := m.sessions[d]; ok {
		return domain.ErrSessionConflict
	}
	m.sessions[d] = domain.Session{TokenHash: d, UserID: userID, ExpiresAt: expiresAt, CreatedAt: m.now()}
	return nil
}

func (m *memorySessions) Consume(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := repository.TokenDigest(token)
	s, ok := m.sessions[d]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return "", apperrors.NotFound("session", "token")
	}
	delete(m.sessions, d)
	return s.UserID, nil
}

func (m *memorySessions) RevokeAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for d, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, d)
		}
	}
	return nil
}

func (m *memorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// memoryUsers is a UserRepository with row semantics: reads return copies
// and each write touches only its own fields under the same conditions as
// the PostgreSQL statements. A hook registered with before runs once, ahead
// of the named write, to interleave a concurrent flow.
type memoryUsers struct {
	mu    sync.Mutex
	rows  map[string]domain.User
	hooks map[string]func()
}

var _ repository.UserRepository = (*memoryUsers)(nil)

func newMemoryUsers(users ...*domain.User) *memoryUsers {
	m := &memoryUsers{rows: map[string]domain.User{}, hooks: map[string]func(){}}
	for _, u := range users {
		m.rows[u.ID] = *u
	}
	return m
}

func (m *memoryUsers) before(op string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[op] = fn
}

func (m *memoryUsers) runHook(op string) {
	m.mu.Lock()
	fn := m.hooks[op]
	delete(m.hooks, op)
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *memoryUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == u.Email {
			return domain.ErrEmailExists
		}
	}
	m.rows[u.ID] = *u
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == domain.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memoryUsers) SetVerificationCode(_ context.Context, id, codeHash string, at time.Time) error {
	m.runHook("SetVerificationCode")
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok || u.EmailVerified {
		return domain.ErrAlreadyVerified
	}
	u.VerificationCodeHash, u.UpdatedAt = codeHash, at
	m.rows[id] = u
	return nil
}

func (m *memoryUsers) MarkEmailVerified(_ context.Context, id, codeHash string, at time.Time) error {
	m.runHook("MarkEmailVerified")
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok || u.VerificationCodeHash == "" || u.VerificationCodeHash != codeHash {
		return domain.ErrInvalidCode
	}
	u.MarkEmailVerified()
	u.UpdatedAt = at
	m.rows[id] = u
	return nil
}

func (m *memoryUsers) SetResetCode(_ context.Context, id, codeHash string, expiresAt, at time.Time) error {
	m.runHook("SetResetCode")
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return apperrors.NotFound("user", id)
	}
	u.SetResetCode(codeHash, expiresAt)
	u.UpdatedAt = at
	m.rows[id] = u
	return nil
}

func (m *memoryUsers) ConsumeResetCode(_ context.Context, id, codeHash, passwordHash string, at time.Time) error {
	m.runHook("ConsumeResetCode")
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok || u.ResetCodeHash != codeHash || !u.ResetCodeActive(at) {
		return domain.ErrInvalidOrExpiredCode
	}
	u.PasswordHash = passwordHash
	u.ClearResetCode()
	u.UpdatedAt = at
	m.rows[id] = u
	return nil
}

func (m *memoryUsers) row(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}
