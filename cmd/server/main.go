package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/cart"
	"github.com/iliyamo/jewelry-storefront/internal/config"
	"github.com/iliyamo/jewelry-storefront/internal/database"
	"github.com/iliyamo/jewelry-storefront/internal/handler"
	"github.com/iliyamo/jewelry-storefront/internal/logger"
	"github.com/iliyamo/jewelry-storefront/internal/middleware"
	"github.com/iliyamo/jewelry-storefront/internal/queue"
	"github.com/iliyamo/jewelry-storefront/internal/router"
	"github.com/iliyamo/jewelry-storefront/internal/service"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
	"github.com/iliyamo/jewelry-storefront/internal/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // a missing .env is fine
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Every client file is validated up front so a broken one stops the
	// process instead of failing its first request.
	loader := tenant.NewLoader(cfg.ClientsDir)
	clients, err := loader.LoadAll()
	if err != nil {
		return fmt.Errorf("client configs: %w", err)
	}
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	log.Info("clients loaded", zap.Strings("clients", ids), zap.String("dir", cfg.ClientsDir))

	pool := tenant.NewPool(loader, database.Open, log)

	// Redis backs rate limiting, the response cache and carts.  Without it
	// each falls back to process memory.
	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable, using in-process fallbacks", zap.Error(err))
	}
	var carts cart.Store = cart.NewMemoryStore()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		carts = cart.NewRedisStore(rdb, "", 0)
	}

	events := service.NewPublisher(cfg.RabbitURL, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	welcomer := &queue.Welcomer{Configs: loader, Send: queue.SMTPSend, Log: log.Named("welcome")}
	go func() {
		if err := queue.StartWelcomeConsumer(ctx, cfg.RabbitURL, welcomer); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("welcome consumer stopped", zap.Error(err))
		}
	}()

	e := newEcho(cfg, log)
	router.RegisterRoutes(e, cfg.APIVersion)
	router.RegisterAPI(e, router.Deps{
		Resolver:           pool,
		ReservedSubdomains: cfg.ReservedSubdomains,
		Log:                log,
		RateLimit:          middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:              middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		Auth:               handler.NewAuthHandler(cfg, events, log),
		Products:           handler.NewProductHandler(),
		Cart:               handler.NewCartHandler(carts),
		Orders:             handler.NewOrderHandler(),
		Uploads:            handler.Uploads{MaxFileSize: cfg.MaxFileSize, AllowedFileTypes: cfg.AllowedFileTypes},
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := pool.CloseAll(); err != nil {
		log.Error("close client databases", zap.Error(err))
	}
	return nil
}

// newEcho builds the Echo instance with the process-wide middleware chain.
func newEcho(cfg config.Config, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = apperr.Handler(log, cfg.IsDevelopment())

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.ClientHeader},
		ExposeHeaders:    []string{middleware.ClientHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
	}))
	e.Use(echomw.Gzip())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	return e
}
