// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/honeydae/giftcards/internal/admin"
	"github.com/honeydae/giftcards/internal/auth"
	"github.com/honeydae/giftcards/internal/config"
	"github.com/honeydae/giftcards/internal/core"
	"github.com/honeydae/giftcards/internal/health"
	"github.com/honeydae/giftcards/internal/ledger"
	"github.com/honeydae/giftcards/internal/middleware"
	"github.com/honeydae/giftcards/internal/server"
	"github.com/honeydae/giftcards/internal/user"
)

const (
	drainDelay = 5 * time.Second

	tokenPruneInterval  = time.Hour
	tokenPruneRetention = 24 * time.Hour
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	users  user.Repository
	tokens auth.Repository
	cards  ledger.Repository
	db     *core.Database
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	startedAt := time.Now()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closeLog := setupLogger(cfg.Log)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Driver,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}

	redisConn, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	var blacklist auth.Blacklist
	if redisConn != nil {
		blacklist = auth.NewRedisBlacklist(redisConn)
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	} else {
		blacklist = auth.NewMemoryBlacklist()
		logger.Info("redis not configured, using in-process limiter and blacklist")
	}

	generated, err := auth.EnsureKeyPair(cfg.JWT)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("generated new JWT signing keys",
			"private_key", cfg.JWT.PrivateKeyPath,
		)
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	userSvc := user.NewService(st.users)

	authSvc := auth.NewService(st.tokens, jwtManager, userSvc, blacklist)
	authHandler := auth.NewHandler(authSvc)

	ledgerSvc := ledger.NewService(st.cards, userSvc, cfg.Ledger)
	userHandler := user.NewHandler(userSvc, ledgerSvc)
	ledgerHandler := ledger.NewHandler(
		ledgerSvc,
		ledger.NewQRCodeRenderer(cfg.QRCode),
	)

	if err := bootstrap(ctx, cfg.Bootstrap, userSvc, ledgerSvc, logger); err != nil {
		return err
	}

	go pruneRefreshTokens(ctx, authSvc, logger)

	adminCfg := admin.HandlerConfig{
		Storage:   cfg.Storage.Driver,
		Version:   cfg.App.Version,
		StartedAt: startedAt,
	}
	var deps []health.Dependency
	if st.db != nil {
		adminCfg.DBStats = st.db.Stats
		adminCfg.DBPing = st.db.Ping
		deps = append(deps, health.Dependency{Name: "database", Checker: st.db})
	}
	if redisConn != nil {
		adminCfg.RedisStats = redisConn.PoolStats
		adminCfg.RedisPing = redisConn.Ping
		deps = append(deps, health.Dependency{Name: "redis", Checker: redisConn})
	}

	healthHandler := health.NewHandler(deps...)
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redisConn, middleware.RateLimitConfig{
			Limit: middleware.Limit(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: middleware.IsHealthCheck,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin
	authLimiter := middleware.NewRateLimiter(redisConn, middleware.RateLimitConfig{
		Limit: middleware.Limit(
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthBurst,
			cfg.RateLimit.Window,
		),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, authLimiter)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		ledgerHandler.RegisterRoutes(r, authenticator)
		ledgerHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redisConn.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if st.db != nil {
		if err := st.db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("application stopped")
	return nil
}

func openStores(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*stores, error) {
	if !cfg.UsesPostgres() {
		logger.Warn("using in-memory storage; data is lost on restart")
		return &stores{
			users:  user.NewMemoryRepository(),
			tokens: auth.NewMemoryRepository(),
			cards:  ledger.NewMemoryRepository(),
		}, nil
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Storage.Migrate {
		applied, migErr := db.Migrate(ctx)
		if migErr != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("migrate: %w", migErr)
		}
		logger.Info("database schema applied", "files", applied)
	}

	return &stores{
		users:  user.NewRepository(db.DB),
		tokens: auth.NewRepository(db.DB),
		cards:  ledger.NewRepository(db.DB),
		db:     db,
	}, nil
}

func pruneRefreshTokens(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(tokenPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := svc.PruneExpired(ctx, tokenPruneRetention)
			if err != nil {
				logger.Warn("prune refresh tokens failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("pruned expired refresh tokens", "count", deleted)
			}
		}
	}
}

// setupLogger writes to stdout and, when log.file is set, to a rotated file
// as well. The returned func flushes and closes the file.
func setupLogger(cfg config.LogConfig) (*slog.Logger, func()) {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	closeFn := func() {}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closeFn = func() {
			_ = rotator.Close() //nolint:errcheck // best-effort on exit
		}
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeFn
}
