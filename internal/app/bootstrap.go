package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicecontrol/internal/auth"
	"voicecontrol/internal/command"
	"voicecontrol/internal/config"
	"voicecontrol/internal/db"
	"voicecontrol/internal/device"
	"voicecontrol/internal/maintenance"
	"voicecontrol/internal/mqtt"
	"voicecontrol/internal/observability"
	"voicecontrol/internal/user"
)

// Options controls optional bootstrap steps so tests can skip them.
type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

// Runtime is the assembled server: a root handler plus the resources to
// release on shutdown.
type Runtime struct {
	Config  config.Config
	Handler http.Handler
	Logger  *observability.Logger

	pool *pgxpool.Pool
	mqtt *mqtt.Client
}

// Build loads configuration, connects the backing services and wires every
// handler into one http.Handler.
func Build(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()
	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Warn("sentry_init_failed", map[string]any{"error": err.Error()})
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if opts.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var mqttClient *mqtt.Client
	var publisher device.Publisher
	if cfg.MQTTBrokerURL != "" {
		mqttClient, err = mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword)
		if err != nil {
			logger.Warn("mqtt_unavailable", map[string]any{"error": err.Error()})
		} else {
			publisher = mqttClient
		}
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		pool.Close()
		return nil, err
	}

	authRepo := auth.NewRepository(pool)
	guard := auth.NewAccountGuard(authRepo, cfg.LockoutThreshold, cfg.LockoutDuration)
	passwords := auth.NewPasswordPolicy(auth.DefaultBcryptCost)
	authService := auth.NewService(authRepo, authRepo, guard, passwords, issuer, logger)
	authHandler := auth.NewHandler(authService, logger)

	userRepo := user.NewRepository(pool)
	userHandler := user.NewHandler(userRepo, passwords, logger)

	deviceRepo := device.NewRepository(pool)
	controller := device.NewController(deviceRepo, publisher, logger)
	deviceHandler := device.NewHandler(deviceRepo, controller, logger)

	commandRepo := command.NewRepository(pool)
	commandHandler := command.NewHandler(commandRepo, deviceRepo, controller, logger)

	cleanup := maintenance.NewCleanupHandler(authRepo, commandRepo, cfg.CronSecret,
		cfg.SessionRetention, cfg.CommandLogRetention, cfg.CleanupBatchSize, logger)

	loginLimiter := auth.NewRateLimiter("login", cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)
	apiLimiter := auth.NewRateLimiter("api", cfg.RateLimitRequests, cfg.RateLimitWindow)

	protected := http.NewServeMux()
	userHandler.Register(protected)
	deviceHandler.Register(protected)
	commandHandler.Register(protected)

	api := http.NewServeMux()
	authHandler.Register(api, loginLimiter)
	api.Handle("/", auth.RequireAuth(issuer, protected))

	root := http.NewServeMux()
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("POST /internal/cleanup", cleanup)
	root.Handle("/", apiLimiter.Middleware(api))

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger, root))

	return &Runtime{
		Config:  cfg,
		Handler: handler,
		Logger:  logger,
		pool:    pool,
		mqtt:    mqttClient,
	}, nil
}

// Close releases everything Build acquired.
func (r *Runtime) Close() {
	if r.mqtt != nil {
		r.mqtt.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
	observability.FlushSentry()
}
