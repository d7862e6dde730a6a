package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/kapu/opening-trainer/internal/config"
	"github.com/kapu/opening-trainer/internal/content"
	"github.com/kapu/opening-trainer/internal/drill"
	"github.com/kapu/opening-trainer/internal/httpapi"
	"github.com/kapu/opening-trainer/internal/obslog"
	"github.com/kapu/opening-trainer/internal/service/training"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	catalog, err := content.New(cfg.ContentDir)
	if err != nil {
		logger.Fatal("content_load_failed", zap.Error(err))
	}

	var repo training.Repository
	if cfg.DatabaseURL != "" {
		db, err := training.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database_init_failed", zap.Error(err))
		}
		defer db.Close()
		repo = training.NewRepository(db)
	} else {
		logger.Warn("database_not_configured_using_memory")
		repo = training.NewMemoryRepository()
	}

	store, err := training.NewAttemptStore(cfg.RedisURL, cfg.AttemptTTL)
	if err != nil {
		logger.Fatal("redis_init_failed", zap.Error(err))
	}
	defer store.Close()

	svc := training.NewService(catalog, repo, store, logger, training.Options{
		SelectionMode:    drill.SelectionMode(cfg.SelectionMode),
		UpgradeOnly:      cfg.UpgradeOnly,
		LeaderboardLimit: cfg.LeaderboardLimit,
	})

	server := httpapi.NewServer(svc, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown_error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server_error", zap.Error(err))
		}
	}
}
