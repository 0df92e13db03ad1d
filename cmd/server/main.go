package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/notes-auth/internal/config"
	"github.com/iliyamo/notes-auth/internal/database"
	"github.com/iliyamo/notes-auth/internal/handler"
	"github.com/iliyamo/notes-auth/internal/logging"
	"github.com/iliyamo/notes-auth/internal/middleware"
	"github.com/iliyamo/notes-auth/internal/queue"
	"github.com/iliyamo/notes-auth/internal/repository"
	"github.com/iliyamo/notes-auth/internal/router"
	"github.com/iliyamo/notes-auth/internal/service"
	"github.com/iliyamo/notes-auth/internal/utils"
)

const serviceName = "notes-auth"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{Service: serviceName, Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info(ctx, "database migrated")
	}

	clock := service.NewRealClock()
	signer, err := service.NewTokenSigner(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, clock)
	if err != nil {
		return err
	}

	// Redis is mandatory for the Redis refresh store and optional for the
	// response cache, which is simply disabled when Redis is unreachable.
	cacheCfg := config.LoadCacheConfig()
	var rdb *redis.Client
	if cfg.RefreshStore == config.RefreshStoreRedis || cacheCfg.Enabled {
		rdb, err = config.NewRedisClient(ctx, config.LoadRedisConfig())
		if err != nil {
			if cfg.RefreshStore == config.RefreshStoreRedis {
				return err
			}
			logger.Warn(ctx, "redis unavailable; response cache disabled", "error", err)
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
		}
	}
	var cacheClient redis.UniversalClient
	if rdb != nil {
		cacheClient = rdb
	}

	var (
		tokens service.RefreshTokenStore
		purger service.ExpiredPurger
	)
	switch cfg.RefreshStore {
	case config.RefreshStoreRedis:
		tokens = repository.NewRedisTokenRepo(rdb, repository.DefaultRefreshKeyPrefix)
	default:
		mysqlTokens := repository.NewTokenRepo(db)
		tokens, purger = mysqlTokens, mysqlTokens
	}
	logger.Info(ctx, "refresh token store selected", "store", cfg.RefreshStore)

	publisher := queue.NewAMQPPublisher(cfg.RabbitURL)
	if !publisher.Enabled() {
		logger.Info(ctx, "RABBITMQ_URL not set; domain events disabled")
	}

	auth := service.NewAuthService(
		repository.NewUserRepo(db),
		tokens,
		service.NewBcryptHasher(cfg.BcryptCost),
		signer,
		publisher,
		clock,
		logger,
	)
	cache := middleware.NewResponseCache(cacheCfg, cacheClient, logger)

	e := newEcho(logger)
	router.Register(e, router.Deps{
		Auth:     handler.NewAuthHandler(auth, logger),
		Notes:    handler.NewNoteHandler(repository.NewNoteRepo(db), cache, clock, logger),
		Verifier: signer,
		Cache:    cache,
		Log:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info(gctx, "listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if purger != nil {
		g.Go(func() error {
			return service.StartRefreshTokenCleanup(gctx, purger, cfg.CleanupInterval, clock, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "stopped gracefully")
	return nil
}

func newEcho(logger logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 15 * time.Second
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: utils.NewRequestID}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info(c.Request().Context(), "request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"request_id", v.RequestID,
			)
			return nil
		},
	}))
	e.Use(middleware.Metrics())
	return e
}
