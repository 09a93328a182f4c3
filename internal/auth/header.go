package auth

import (
	"strings"

	"github.com/utafrali/quickbite-auth/internal/domain"
)

const bearerPrefix = "Bearer "

// ExtractBearer returns the token from an Authorization header value. The
// header must start with "Bearer "; anything else, including an empty token,
// is reported as domain.ErrMissingToken.
func ExtractBearer(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", domain.ErrMissingToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", domain.ErrMissingToken
	}
	return token, nil
}
