package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/quickbite-auth/internal/domain"
	"github.com/utafrali/quickbite-auth/pkg/middleware"
)

// Token identity claims.
const (
	DefaultIssuer   = "quickbite-api"
	DefaultAudience = "quickbite-app"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Claims is the signed payload of both token kinds.
type Claims struct {
	UserID string           `json:"userId"`
	Email  string           `json:"email"`
	Role   string           `json:"role"`
	Type   domain.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// Config configures a Codec. Secrets must be non-empty and distinct.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

type keyConfig struct {
	secret []byte
	ttl    time.Duration
}

// Codec issues and verifies HS256 access and refresh tokens. Each kind is
// signed with its own secret.
type Codec struct {
	keys     map[domain.TokenKind]keyConfig
	issuer   string
	audience string
	now      Clock
}

// NewCodec creates a codec. A nil clock uses time.Now.
func NewCodec(cfg Config, now Clock) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if now == nil {
		now = time.Now
	}

	return &Codec{
		keys: map[domain.TokenKind]keyConfig{
			domain.TokenKindAccess:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			domain.TokenKindRefresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      now,
	}, nil
}

// TTL returns the configured lifetime of the given token kind.
func (c *Codec) TTL(kind domain.TokenKind) time.Duration {
	return c.keys[kind].ttl
}

// Issue signs a token of the given kind. Refresh tokens carry a random jti
// so two tokens minted in the same second still differ.
func (c *Codec) Issue(kind domain.TokenKind, userID, email, role string) (string, error) {
	key, ok := c.keys[kind]
	if !ok {
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}

	now := c.now().UTC()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.ttl)),
		},
	}
	if kind == domain.TokenKindRefresh {
		claims.ID = uuid.NewString()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// IssuePair signs a fresh access and refresh token for the user.
func (c *Codec) IssuePair(userID, email, role string) (domain.TokenPair, error) {
	access, err := c.Issue(domain.TokenKindAccess, userID, email, role)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := c.Issue(domain.TokenKindRefresh, userID, email, role)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks the signature with the secret of the expected kind, then
// issuer, audience and expiry, then the type claim. It returns
// domain.ErrExpiredToken, domain.ErrWrongTokenKind or domain.ErrInvalidToken.
func (c *Codec) Verify(token string, expected domain.TokenKind) (*Claims, error) {
	key, ok := c.keys[expected]
	if !ok {
		return nil, domain.ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrExpiredToken
	default:
		return nil, domain.ErrInvalidToken
	}

	if claims.Type != expected {
		return nil, domain.ErrWrongTokenKind
	}
	if claims.UserID == "" {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// Authenticate verifies a Bearer access token taken from an Authorization
// header. It satisfies middleware.Authenticator.
func (c *Codec) Authenticate(header string) (*middleware.Claims, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return nil, err
	}
	claims, err := c.Verify(token, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}
