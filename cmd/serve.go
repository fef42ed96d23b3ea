package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinicflow/drafthub/internal/config"
	"clinicflow/drafthub/internal/handler"
	"clinicflow/drafthub/internal/model"
	"clinicflow/drafthub/internal/repository"
	"clinicflow/drafthub/internal/service"
	jwtpkg "clinicflow/drafthub/pkg/jwt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	// 1. Initialize logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 2. Initialize state store (Redis, Postgres or in-memory)
	stateStore, closeStore, err := openStateStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Initialize services
	draftService := service.NewDraftService(stateStore, cfg.Draft, nil, logger)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go draftService.Run(janitorCtx)

	// 4. Initialize handlers and router
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	draftHandler := handler.NewDraftHandler(draftService, logger)
	router := handler.SetupRouter(cfg, logger, jwtManager, draftHandler)

	// 5. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 6. Start server with graceful shutdown
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("state_backend", cfg.State.Backend),
			zap.Bool("drafts_enabled", cfg.Draft.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 7. Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	}
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Persist whatever forms were still typing into.
	stopJanitor()
	draftService.Shutdown()
	logger.Info("server exited gracefully")
	return nil
}

// openStateStore builds the configured backend and a func releasing it.
func openStateStore(cfg *config.Config, logger *zap.Logger) (repository.StateStore, func(), error) {
	switch cfg.State.Backend {
	case "redis":
		client, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("using Redis state store")
		return repository.NewRedisStateStore(client), func() { _ = client.Close() }, nil

	case "postgres":
		db, err := config.NewPostgresDB(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.Postgres.AutoMigrate {
			if err := model.AutoMigrate(db); err != nil {
				return nil, nil, fmt.Errorf("auto-migrate: %w", err)
			}
			logger.Info("database migration completed")
		}
		logger.Info("using Postgres state store")
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repository.NewPGStateStore(db, nil), closeDB, nil

	case "memory":
		logger.Info("using in-memory state store")
		return repository.NewMemoryStateStore(nil), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
