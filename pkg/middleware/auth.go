package middleware

import (
	"context"
	"net/http"
	"slices"

	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
	"github.com/utafrali/quickbite-auth/pkg/httputil"
	"github.com/utafrali/quickbite-auth/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "auth_claims"

// Claims is the identity the auth middleware attaches to the request.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Authenticator turns the raw Authorization header into claims. Errors
// should be *apperrors.AppError so the response carries a precise code
// (missing, expired, wrong kind...).
type Authenticator interface {
	Authenticate(authorizationHeader string) (*Claims, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(authorizationHeader string) (*Claims, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(h string) (*Claims, error) { return f(h) }

// Auth rejects requests without a valid access token and stores the claims
// in the request context.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role is not listed.
// It must be mounted after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims set by Auth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// UserIDFromContext extracts the authenticated user ID.
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// RoleFromContext extracts the authenticated user's role.
func RoleFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Role
	}
	return ""
}
