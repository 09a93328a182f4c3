package domain

import (
	"net/http"

	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

// Auth error taxonomy. Each value wraps a pkg/errors sentinel so callers can
// match either the precise condition or its category.
var (
	ErrInvalidCredentials = apperrors.New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrEmailExists        = apperrors.New("EMAIL_EXISTS", "Email already exists", http.StatusConflict, apperrors.ErrAlreadyExists)
	ErrUserNotFound       = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound, apperrors.ErrNotFound)

	ErrInvalidToken   = apperrors.New("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrExpiredToken   = apperrors.New("EXPIRED_TOKEN", "Token expired", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrWrongTokenKind = apperrors.New("WRONG_TOKEN_KIND", "Invalid token type", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrMissingToken   = apperrors.New("MISSING_TOKEN", "No token provided", http.StatusUnauthorized, apperrors.ErrUnauthorized)

	ErrInvalidCode          = apperrors.New("INVALID_CODE", "Invalid verification code", http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrInvalidOrExpiredCode = apperrors.New("INVALID_OR_EXPIRED_CODE", "Invalid or expired reset code", http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrAlreadyVerified      = apperrors.New("ALREADY_VERIFIED", "Email is already verified", http.StatusConflict, apperrors.ErrConflict)

	ErrSessionConflict    = apperrors.New("CONFLICT", "Session token already exists", http.StatusConflict, apperrors.ErrConflict)
	ErrNotificationFailed = apperrors.New("NOTIFICATION_FAILED", "Could not deliver the email, try again later", http.StatusServiceUnavailable, apperrors.ErrServiceUnavail)
)
