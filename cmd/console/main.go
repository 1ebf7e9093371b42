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

	"condoadmin/client"
	"condoadmin/client/credential"
	"condoadmin/client/session"
	"condoadmin/internal/api"
	"condoadmin/internal/config"
	"condoadmin/internal/metrics"
	"condoadmin/internal/middleware"
	"condoadmin/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("console startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	observer := metrics.NewPrometheusObserver()
	navigator := api.NewRedirectRecorder()

	apiClient, err := client.New(cfg.API.URL, store,
		client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		client.WithObserver(observer),
		client.WithNavigator(navigator),
		client.WithRefreshPath(cfg.API.RefreshPath),
		client.WithRenewTimeout(cfg.API.RenewTimeout),
	)
	if err != nil {
		return err
	}

	manager := session.NewManager(apiClient, session.WithObserver(observer))
	defer manager.Dispose()

	// Pages answer 503 until the stored session has been checked.
	go func() {
		if err := manager.Init(ctx); err != nil {
			logger.Warn("session restore failed", zap.Error(err))
		}
	}()

	if cfg.Console.KeepaliveInterval > 0 {
		go session.NewKeeper(manager, cfg.Console.KeepaliveInterval).Run(ctx)
	}

	r := api.RegisterConsoleRoutes(api.ConsoleDeps{
		Sessions:       api.NewSessionHandler(manager, navigator),
		Resources:      api.NewResourceHandler(apiClient, manager),
		Signal:         manager,
		LoginLimiter:   middleware.NewLoginLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		AllowedOrigins: cfg.Console.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("console starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("api", apiClient.BaseURL()),
			zap.String("store", cfg.Store.Backend),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("console listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down console...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()

	// SSE streams only end once their subscriptions close.
	manager.Dispose()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("console forced to shutdown: %w", err)
	}

	logger.Info("console exited properly")
	return nil
}

func initStore(cfg *config.Config) (credential.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		rdb, err := initRedis(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return credential.NewRedisStore(rdb, cfg.Store.Prefix), func() { _ = rdb.Close() }, nil
	case "memory":
		return credential.NewMemoryStore(), func() {}, nil
	default:
		return credential.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
