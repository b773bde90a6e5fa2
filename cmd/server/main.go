package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shelfmate/backend/internal/booksearch"
	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/config"
	"shelfmate/backend/internal/database"
	"shelfmate/backend/internal/handler"
	"shelfmate/backend/internal/hub"
	"shelfmate/backend/internal/logger"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	// Swagger docs served at /swagger
	_ "shelfmate/backend/docs"
)

const shutdownTimeout = 10 * time.Second

func init() {
	config.LoadConfig()
}

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Shelfmate API
// @version         1.0
// @description     Social reading tracker: libraries, journals, friends, messages and articles.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Unable to build logger, %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, zl)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	local := hub.NewHub()
	var notifier hub.Notifier = local
	var bridge *hub.RedisBridge
	var searchCache booksearch.Cache

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}

		bridge = hub.NewRedisBridge(rdb, local, zl.Named("realtime"))
		notifier = bridge
		searchCache = booksearch.NewRedisCache(rdb)
		zl.Info("redis enabled: realtime fan-out and search cache")
	}

	var events broker.Publisher = broker.Noop{}
	var outbox *broker.Async
	if cfg.NATSURL != "" {
		nb, err := broker.NewNatsBroker(ctx, cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nb.Close()
		outbox = broker.NewAsync(nb, cfg.EventQueueSize, cfg.EventPublishTimeout, zl.Named("events"))
		events = outbox
		zl.Info("nats enabled: domain events", zap.String("stream", broker.StreamName))
	}

	search := booksearch.NewClient(booksearch.Options{
		BaseURL:  cfg.BooksAPIURL,
		APIKey:   cfg.BooksAPIKey,
		Timeout:  cfg.BooksAPITimeout,
		Cache:    searchCache,
		CacheTTL: cfg.SearchCacheTTL,
	}, zl)

	svc := service.New(service.Deps{
		DB:       db,
		Logger:   zl,
		Notifier: notifier,
		Events:   events,
		Search:   search,
	})

	if cfg.AdminUsername != "" {
		// The admin account cannot reset its password through the security question.
		admin, err := svc.Users.EnsureAdmin(ctx, service.RegisterInput{
			Username:         cfg.AdminUsername,
			Email:            cfg.AdminEmail,
			Password:         cfg.AdminPassword,
			SecurityQuestion: "Password reset is disabled for this account",
			SecurityAnswer:   uuid.NewString(),
		})
		if err != nil {
			return err
		}
		zl.Info("admin account ready", zap.Uint("user_id", admin.ID))
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.New(svc, local, handler.Options{
		JWTSecret:    cfg.JWTSecret,
		TokenTTL:     cfg.TokenTTL,
		CookieSecure: cfg.CookieSecure,
		CORSOrigin:   cfg.CORSOrigin,
	}, zl)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.InitRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("server is running",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("swagger", "/swagger/index.html"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}
	if outbox != nil {
		g.Go(func() error {
			return outbox.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
