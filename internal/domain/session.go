package domain

import "time"

// TokenKind distinguishes the two signed token types.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Session is a stored refresh token. Only the token's digest is persisted.
type Session struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
