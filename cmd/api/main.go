package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/vibecodezero/subscriber-service/internal/api/http"
	"github.com/vibecodezero/subscriber-service/internal/api/http/handlers"
	"github.com/vibecodezero/subscriber-service/internal/auth"
	"github.com/vibecodezero/subscriber-service/internal/cache"
	"github.com/vibecodezero/subscriber-service/internal/config"
	"github.com/vibecodezero/subscriber-service/internal/events"
	"github.com/vibecodezero/subscriber-service/internal/observability"
	"github.com/vibecodezero/subscriber-service/internal/persistence"
	"github.com/vibecodezero/subscriber-service/internal/ratelimit"
	"github.com/vibecodezero/subscriber-service/internal/registry"
	"github.com/vibecodezero/subscriber-service/internal/service"
	"github.com/vibecodezero/subscriber-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthDeps := map[string]handlers.DependencyPinger{}

	var adapter storage.Adapter
	switch cfg.Storage.Backend {
	case config.BackendFile:
		fileAdapter, err := storage.NewFileAdapter(cfg.Storage.FilePath)
		if err != nil {
			logger.Fatal("failed to open subscribers file", zap.Error(err))
		}
		adapter = fileAdapter

	case config.BackendSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite database", zap.Error(err))
		}
		defer db.Close()
		adapter = storage.NewSQLiteAdapter(db)
		healthDeps["sqlite"] = sqlPinger{db: db}

	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Storage.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		adapter = storage.NewPostgresAdapter(pg.PoolHandle())
		healthDeps["postgres"] = pg
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	healthDeps["redis"] = redis

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	analytics := service.NewAnalyticsService(dispatcher, logger, metrics, cfg.Analytics)
	analytics.RegisterHandlers()

	reg := registry.New(adapter, dispatcher, logger,
		registry.WithDefaultSource(cfg.App.DefaultSource))

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redis.Client, logger, cfg.RateLimit.Limit, cfg.RateLimit.Window())
	}
	statsCache := cache.NewStatsCache(redis.Client, logger, cfg.Analytics.StatsCacheTTL())

	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)
	adminMiddleware := auth.NewAdminMiddleware(tokens, cfg.Admin.PasswordHash != "")

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps, logger),
		Subscribers:     handlers.NewSubscribersHandler(reg, limiter, statsCache),
		Admin:           handlers.NewAdminHandler(tokens, cfg.Admin),
		AdminMiddleware: adminMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("backend", cfg.Storage.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
