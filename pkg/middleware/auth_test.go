package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
	"github.com/utafrali/quickbite-auth/pkg/httputil"
	"github.com/utafrali/quickbite-auth/pkg/logger"
)

var fakeAuthenticator = AuthenticatorFunc(func(h string) (*Claims, error) {
	switch h {
	case "":
		return nil, apperrors.New("MISSING_TOKEN", "No token provided", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	case "Bearer good":
		return &Claims{UserID: "u-1", Email: "alice@example.com", Role: "user"}, nil
	case "Bearer admin":
		return &Claims{UserID: "u-2", Email: "root@example.com", Role: "admin"}, nil
	default:
		return nil, apperrors.New("INVALID_TOKEN", "Invalid token", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	}
})

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuth_ValidToken(t *testing.T) {
	var gotUser, gotRole, gotLogUser string
	h := Auth(fakeAuthenticator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotLogUser = logger.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", gotUser)
	assert.Equal(t, "user", gotRole)
	assert.Equal(t, "u-1", gotLogUser)
}

func TestAuth_RejectsWithAuthenticatorCode(t *testing.T) {
	tests := []struct {
		header string
		code   string
	}{
		{"", "MISSING_TOKEN"},
		{"Bearer forged", "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		called := false
		h := Auth(fakeAuthenticator)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, tt.code, errorCode(t, rec))
	}
}

func TestRequireRole(t *testing.T) {
	h := Auth(fakeAuthenticator)(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestClaimsFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, ClaimsFromContext(req.Context()))
	assert.Empty(t, UserIDFromContext(req.Context()))
	assert.Empty(t, RoleFromContext(req.Context()))
}
