package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

var authOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Total number of auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

var notificationFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_notification_failures_total",
		Help: "Emails that could not be handed to the notification driver, by operation",
	},
	[]string{"operation"},
)

// Operation names used as the metric label.
const (
	opRegister           = "register"
	opLogin              = "login"
	opRefresh            = "refresh"
	opLogout             = "logout"
	opVerifyEmail        = "verify_email"
	opResendVerification = "resend_verification"
	opForgotPassword     = "forgot_password"
	opResetPassword      = "reset_password"
)

// observe records the outcome of op: "success", the AppError code, or
// "error" for anything else.
func observe(op string, err error) {
	authOperationsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "error"
}
