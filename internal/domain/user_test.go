package domain

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

// ============================================================================
// Role Validation Tests
// ============================================================================

func TestValidRoles_ContainsAll(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{RoleUser, RoleAdmin, RoleRestaurantOwner, RoleDeliveryDriver},
		ValidRoles(),
	)
	assert.Equal(t, RoleUser, DefaultRole)
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, IsValidRole(r), "expected %q to be valid", r)
	}
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("ADMIN"))
	assert.False(t, IsValidRole("customer"))
}

// ============================================================================
// User Tests
// ============================================================================

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestUser_JSONHidesCredentials(t *testing.T) {
	exp := time.Now()
	u := User{
		ID:                   "u-1",
		Email:                "alice@example.com",
		PasswordHash:         "$2a$12$hash",
		VerificationCodeHash: "vdigest",
		ResetCodeHash:        "rdigest",
		ResetCodeExpiresAt:   &exp,
		Role:                 RoleUser,
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	s := string(raw)
	assert.NotContains(t, s, "$2a$12$hash")
	assert.NotContains(t, s, "vdigest")
	assert.NotContains(t, s, "rdigest")
	assert.Contains(t, s, `"is_email_verified":false`)
}

func TestUser_ResetCodeLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}
	assert.False(t, u.ResetCodeActive(now))

	u.SetResetCode("digest", now.Add(10*time.Minute))
	assert.True(t, u.ResetCodeActive(now))
	assert.True(t, u.ResetCodeActive(now.Add(10*time.Minute-time.Nanosecond)))
	assert.False(t, u.ResetCodeActive(now.Add(10*time.Minute)))

	u.ClearResetCode()
	assert.Empty(t, u.ResetCodeHash)
	assert.Nil(t, u.ResetCodeExpiresAt)
	assert.False(t, u.ResetCodeActive(now))
}

func TestUser_MarkEmailVerified(t *testing.T) {
	u := &User{VerificationCodeHash: "digest"}
	u.MarkEmailVerified()

	assert.True(t, u.EmailVerified)
	assert.Empty(t, u.VerificationCodeHash)
}

// ============================================================================
// Error Taxonomy Tests
// ============================================================================

func TestErrors_Categories(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		status   int
	}{
		{ErrInvalidCredentials, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{ErrEmailExists, apperrors.ErrAlreadyExists, http.StatusConflict},
		{ErrUserNotFound, apperrors.ErrNotFound, http.StatusNotFound},
		{ErrInvalidToken, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{ErrExpiredToken, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{ErrWrongTokenKind, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{ErrMissingToken, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{ErrInvalidCode, apperrors.ErrInvalidInput, http.StatusBadRequest},
		{ErrInvalidOrExpiredCode, apperrors.ErrInvalidInput, http.StatusBadRequest},
		{ErrAlreadyVerified, apperrors.ErrConflict, http.StatusConflict},
		{ErrSessionConflict, apperrors.ErrConflict, http.StatusConflict},
		{ErrNotificationFailed, apperrors.ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.sentinel, tt.err.Error())
		assert.Equal(t, tt.status, apperrors.HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestErrors_DistinctCodes(t *testing.T) {
	all := []*apperrors.AppError{
		ErrInvalidCredentials, ErrEmailExists, ErrUserNotFound, ErrInvalidToken,
		ErrExpiredToken, ErrWrongTokenKind, ErrMissingToken, ErrInvalidCode,
		ErrInvalidOrExpiredCode, ErrAlreadyVerified, ErrSessionConflict, ErrNotificationFailed,
	}
	seen := map[string]bool{}
	for _, e := range all {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
	assert.False(t, errors.Is(ErrExpiredToken, ErrInvalidToken))
}
