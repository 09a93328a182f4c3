package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/quickbite-auth/pkg/health"
	"github.com/utafrali/quickbite-auth/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "quickbite-auth"

// NewRouter creates a chi router with all auth routes registered. The
// credential and code endpoints share one per-IP limiter configured by
// authLimit.
func NewRouter(
	authService AuthService,
	authenticator middleware.Authenticator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	authLimit middleware.RateLimitConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(authService, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(MaxBodySize(DefaultMaxBodyBytes))

		r.Post("/logout", authHandler.Logout)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(authLimit, logger))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/verify-email", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		r.With(middleware.Auth(authenticator)).Get("/profile", authHandler.Profile)
	})

	return r
}
