package main

import (
	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/handler"
	"account_service/internal/service"
	"account_service/internal/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the yaml config")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	lgr := setupLogger(cfg.Env)
	lgr.Info("starting account service", slog.String("env", cfg.Env))

	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		lgr.Error("account service stopped", slog.Any("error", err))
		os.Exit(1)
	}

	lgr.Info("account service stopped")
}

func run(ctx context.Context, cfg *config.Config, lgr *slog.Logger) error {
	const op = "main.run"

	st, err := setupStorage(ctx, cfg, lgr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer st.Close()

	registry, closeRegistry, err := setupRevocation(ctx, cfg, lgr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeRegistry()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, registry)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srvc, err := service.NewService(st, tokens, cfg.Security.BcryptCost, lgr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h, err := handler.NewHandler(srvc, lgr, promRegistry)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", cfg.HTTPServer.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
	}

	lgr.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func setupStorage(ctx context.Context, cfg *config.Config, lgr *slog.Logger) (storage.Storage, error) {
	const op = "main.setupStorage"

	switch cfg.DB.Driver {
	case config.DriverMemory:
		lgr.Warn("using in-memory account storage, data is lost on restart")
		return storage.NewMemoryStorage(), nil
	default:
		st, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return st, nil
	}
}

func setupRevocation(ctx context.Context, cfg *config.Config, lgr *slog.Logger) (storage.RevocationRegistry, func(), error) {
	const op = "main.setupRevocation"

	switch cfg.Revocation.Backend {
	case config.BackendMemory:
		lgr.Warn("using in-memory revocation registry, revocations are not shared between instances")
		return storage.NewMemoryRevocationRegistry(), func() {}, nil
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		closeFn := func() {
			if err := client.Close(); err != nil {
				lgr.Error("failed to close redis client", slog.Any("error", err))
			}
		}

		return storage.NewRedisRevocationRegistry(client, cfg.Redis.KeyPrefix), closeFn, nil
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
