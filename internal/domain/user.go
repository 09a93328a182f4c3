package domain

import (
	"strings"
	"time"
)

// User is a registered account. Credential material (password hash and
// one-time code digests) never leaves the service in JSON.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"is_email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// VerificationCodeHash is the digest of the outstanding email
	// verification code. It does not expire.
	VerificationCodeHash string `json:"-"`

	// ResetCodeHash and ResetCodeExpiresAt describe the outstanding password
	// reset code; both are empty when none is pending.
	ResetCodeHash      string     `json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
}

// NormalizeEmail lower-cases and trims an address. Emails are compared and
// stored in this form so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetResetCode records a new reset code digest, replacing any previous one.
func (u *User) SetResetCode(digest string, expiresAt time.Time) {
	u.ResetCodeHash = digest
	u.ResetCodeExpiresAt = &expiresAt
}

// ClearResetCode removes the outstanding reset code.
func (u *User) ClearResetCode() {
	u.ResetCodeHash = ""
	u.ResetCodeExpiresAt = nil
}

// ResetCodeActive reports whether a reset code is pending and unexpired at now.
func (u *User) ResetCodeActive(now time.Time) bool {
	return u.ResetCodeHash != "" && u.ResetCodeExpiresAt != nil && now.Before(*u.ResetCodeExpiresAt)
}

// MarkEmailVerified flags the email as verified and drops the code.
func (u *User) MarkEmailVerified() {
	u.EmailVerified = true
	u.VerificationCodeHash = ""
}
