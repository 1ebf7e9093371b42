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

	"condoadmin/internal/api"
	"condoadmin/internal/config"
	"condoadmin/internal/service"
	"condoadmin/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// devapi is a local stand-in for the condominium backend: the same auth
// endpoints and token lifecycle, backed by seeded data.
func main() {
	cfg := config.MustLoad()

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("devapi startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	dir, err := service.NewDirectory(service.DefaultSeed(), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}

	allow, closeAllow, err := initAllowList(cfg)
	if err != nil {
		return err
	}
	defer closeAllow()

	authSvc := service.NewAuthService(dir, allow, cfg.DevAPI.SigningKey,
		service.WithTTLs(cfg.DevAPI.AccessTokenTTL, cfg.DevAPI.RefreshTokenTTL),
		service.WithRotation(cfg.DevAPI.RotateRefresh),
	)

	r := api.RegisterDevAPIRoutes(api.NewAuthHandler(authSvc), api.NewDirectoryHandler(dir), authSvc)

	srv := &http.Server{
		Addr:              cfg.DevAPI.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("devapi starting",
			zap.String("addr", cfg.DevAPI.Port),
			zap.Duration("access_ttl", cfg.DevAPI.AccessTokenTTL),
			zap.Bool("rotate_refresh", cfg.DevAPI.RotateRefresh),
			zap.String("allow_list", cfg.DevAPI.AllowList))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("devapi listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down devapi...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devapi forced to shutdown: %w", err)
	}

	logger.Info("devapi exited properly")
	return nil
}

func initAllowList(cfg *config.Config) (service.AllowList, func(), error) {
	if cfg.DevAPI.AllowList != "redis" {
		return service.NewMemoryAllowList(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return service.NewRedisAllowList(rdb), func() { _ = rdb.Close() }, nil
}
