package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/quickbite-auth/internal/auth"
	"github.com/utafrali/quickbite-auth/internal/config"
	"github.com/utafrali/quickbite-auth/internal/event"
	handler "github.com/utafrali/quickbite-auth/internal/handler/http"
	"github.com/utafrali/quickbite-auth/internal/notification"
	"github.com/utafrali/quickbite-auth/internal/otp"
	"github.com/utafrali/quickbite-auth/internal/repository"
	"github.com/utafrali/quickbite-auth/internal/repository/postgres"
	redisstore "github.com/utafrali/quickbite-auth/internal/repository/redis"
	"github.com/utafrali/quickbite-auth/internal/service"
	"github.com/utafrali/quickbite-auth/migrations"
	"github.com/utafrali/quickbite-auth/pkg/database"
	"github.com/utafrali/quickbite-auth/pkg/health"
	pkgkafka "github.com/utafrali/quickbite-auth/pkg/kafka"
	"github.com/utafrali/quickbite-auth/pkg/middleware"
	"github.com/utafrali/quickbite-auth/pkg/tracing"
)

const (
	serviceName        = "quickbite-auth"
	serviceVersion     = "0.1.0"
	slowQueryThreshold = 200 * time.Millisecond
)

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	amqp           *notification.AMQPSender
	sweeper        *postgres.SessionSweeper
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		Enabled:        cfg.OTLPEndpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(a.pool, serviceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err = database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	database.SetSlowQueryLogging(slowQueryThreshold, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})

	sessions, err := a.newSessionStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Kafka is optional: without brokers no auth events are published.
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	sender, err := a.newSender()
	if err != nil {
		return nil, err
	}

	// Build the dependency graph.
	codec, err := auth.NewCodec(auth.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
	}, time.Now)
	if err != nil {
		return nil, fmt.Errorf("create token codec: %w", err)
	}

	opts := []service.Option{service.WithClock(time.Now)}
	if a.producer != nil {
		opts = append(opts, service.WithEvents(event.NewProducer(a.producer, logger)))
	}

	authService := service.NewAuthService(
		postgres.NewUserRepository(a.pool),
		sessions,
		codec,
		otp.NewIssuer(otp.WithPepper(cfg.OTPPepper)),
		notification.NewMailer(sender),
		service.NewBcryptHasher(cfg.BcryptCost),
		logger,
		opts...,
	)

	// HTTP router.
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := handler.NewRouter(authService, codec, healthHandler, logger, corsConfig, cfg.AuthRateLimit())

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// newSessionStore returns the configured refresh-token store. The Postgres
// store gets a sweeper for expired rows; Redis expires keys natively.
func (a *App) newSessionStore(ctx context.Context, h *health.Handler) (repository.SessionStore, error) {
	switch a.cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := database.NewRedisClient(ctx, a.cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		h.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.logger.Info("using redis session store", slog.String("addr", a.cfg.Redis().Addr()))
		return redisstore.NewSessionStore(client, time.Now), nil

	default:
		store := postgres.NewSessionRepository(a.pool, time.Now)
		a.sweeper = postgres.NewSessionSweeper(store, a.cfg.SessionSweepInterval, a.logger)
		a.logger.Info("using postgres session store",
			slog.Duration("sweep_interval", a.cfg.SessionSweepInterval),
		)
		return store, nil
	}
}

// newSender returns the notification driver. Every network driver is
// wrapped in a circuit breaker.
func (a *App) newSender() (notification.Sender, error) {
	var sender notification.Sender

	switch a.cfg.NotificationDriver {
	case config.NotificationLog:
		a.logger.Warn("notification driver is log: emails are not delivered")
		return notification.NewLogSender(a.logger), nil

	case config.NotificationSMTP:
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			User:     a.cfg.SMTPUser,
			Password: a.cfg.SMTPPass,
			From:     a.cfg.SMTPFrom,
		})

	case config.NotificationKafka:
		if a.producer == nil {
			return nil, errors.New("notification driver kafka requires KAFKA_BROKERS")
		}
		sender = notification.NewKafkaSender(a.producer)

	case config.NotificationAMQP:
		amqpSender, err := notification.NewAMQPSender(a.cfg.AMQPURL, a.cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connect to amqp: %w", err)
		}
		a.amqp = amqpSender
		sender = amqpSender

	default:
		return nil, fmt.Errorf("unknown notification driver %q", a.cfg.NotificationDriver)
	}

	a.logger.Info("notification driver initialized", slog.String("driver", a.cfg.NotificationDriver))
	cfg := notification.DefaultBreakerConfig("notification-" + a.cfg.NotificationDriver)
	return notification.NewBreakerSender(sender, cfg, a.logger), nil
}

// Run starts the HTTP server and the session sweeper, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if a.sweeper != nil {
		go a.sweeper.Run(sweepCtx)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopSweeper()
		return errors.Join(err, a.Shutdown())
	}

	stopSweeper()
	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Brokers, Redis and the PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	// 3. Close connections.
	if err := a.release(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release closes every client that was opened. Safe on a partially built App.
func (a *App) release() error {
	var errs []error

	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Error("amqp close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.amqp = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.tracerShutdown(ctx)
		a.tracerShutdown = nil
	}

	return errors.Join(errs...)
}
