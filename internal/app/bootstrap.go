package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/engineerhub/engineerhub/internal/auth"
	authpg "github.com/engineerhub/engineerhub/internal/auth/postgres"
	"github.com/engineerhub/engineerhub/internal/engineers"
	"github.com/engineerhub/engineerhub/internal/mail"
	"github.com/engineerhub/engineerhub/internal/observability"
	"github.com/engineerhub/engineerhub/internal/platform/cache"
	"github.com/engineerhub/engineerhub/internal/platform/db"
	"github.com/engineerhub/engineerhub/jobs"
)

// Runtime holds the long-lived dependencies shared by the HTTP server and the
// worker process.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	Queue   *jobs.Client
	Auth    *auth.Service
	Cookies auth.CookieConfig

	closers []func()
}

// Bootstrap connects to PostgreSQL and Redis and builds the auth service.
// Callers must Close the runtime.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	if cfg.DBAutoMigrate {
		if err := migrateUp(cfg.PGDSN, logger); err != nil {
			return nil, err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.Pool = pool
	rt.closers = append(rt.closers, pool.Close)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.Redis = redisClient
	rt.closers = append(rt.closers, func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	})

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init job client: %w", err)
	}
	rt.Queue = queue
	rt.closers = append(rt.closers, func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	})

	composer, err := mail.NewComposer(cfg.AppURL)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	notifier := mail.NewNotifier(composer, MailSender(cfg, logger, queue))

	store := authpg.NewStore(pool)
	tokens := auth.NewRandomTokens()
	sessions := auth.NewSessionStore(store.Sessions(), tokens, cfg.SessionTTL, nil)
	rt.Auth = auth.NewService(store, sessions, notifier, logger, auth.Options{
		VerificationCodeTTL: cfg.VerificationCodeTTL,
		ResetTokenTTL:       cfg.ResetTokenTTL,
		Tokens:              tokens,
		Recorder:            rt.Metrics,
	})
	rt.Cookies = auth.CookieConfig{
		Name:   cfg.SessionCookieName,
		TTL:    cfg.SessionTTL,
		Secure: cfg.IsProduction(),
	}
	return rt, nil
}

// MailSender picks the transport named by MAIL_DRIVER. The queue driver hands
// messages to the worker.
func MailSender(cfg *Config, logger *slog.Logger, queue *jobs.Client) mail.Sender {
	switch cfg.MailDriver {
	case MailDriverSMTP:
		return mail.NewSMTPSender(SMTPConfig(cfg))
	case MailDriverLog:
		return mail.NewLogSender(logger)
	default:
		return queue
	}
}

// SMTPConfig extracts the relay settings.
func SMTPConfig(cfg *Config) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

// Router wires every HTTP module onto a chi router.
func (rt *Runtime) Router() http.Handler {
	authHandler := auth.NewHandler(rt.Logger, rt.Auth, rt.Cookies)
	requireSession := auth.RequireSession(rt.Auth, rt.Cookies, rt.Logger)
	engineersHandler := engineers.NewHandler(rt.Logger,
		engineers.NewService(engineers.NewRepository(rt.Pool)), requireSession)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: rt.Config.RedisAddr})
	rt.closers = append(rt.closers, func() {
		if err := inspector.Close(); err != nil {
			rt.Logger.Warn("inspector close", slog.Any("error", err))
		}
	})

	return NewRouter(RouterParams{
		Logger:           rt.Logger,
		Config:           rt.Config,
		AuthHandler:      authHandler,
		EngineersHandler: engineersHandler,
		JobHandler:       jobs.NewHandler(inspector, rt.Logger),
		Metrics:          rt.Metrics,
		Readiness: []HealthCheck{
			{Name: "postgres", Check: rt.Pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return cache.Ping(ctx, rt.Redis) }},
		},
	})
}

// Close releases resources in reverse acquisition order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func migrateUp(dsn string, logger *slog.Logger) error {
	migrator, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("migrator close", slog.Any("error", err))
		}
	}()
	if err := migrator.Up(); err != nil {
		return err
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("database migrated", slog.Uint64("version", uint64(version)))
	return nil
}
