package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zombor/ledger-scan/internal/ledger"
	"github.com/zombor/ledger-scan/internal/scanning"
)

type config struct {
	port          int
	dbPath        string
	storagePath   string
	draftTTL      time.Duration
	threshold     float64
	sweepSchedule string
	auth          ledger.BasicAuth
	scanning      scanning.Config
}

func run(cfg config) error {
	slog.Info("Initializing database...", "path", cfg.dbPath)
	db, err := ledger.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing recognizer...", "provider", cfg.scanning.Provider)
	recognizer, err := scanning.New(cfg.scanning)
	if err != nil {
		return fmt.Errorf("initializing recognizer: %w", err)
	}
	defer recognizer.Close()

	slog.Info("Initializing storage...", "path", cfg.storagePath)
	store, err := ledger.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	service := ledger.NewService(db, recognizer, store, ledger.Options{
		DraftTTL:          cfg.draftTTL,
		LowStockThreshold: cfg.threshold,
	})

	if cfg.sweepSchedule != "" {
		sweeper, err := ledger.NewSweeper(service, cfg.sweepSchedule)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer func() { <-sweeper.Stop().Done() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.auth.Username != "" || cfg.auth.Password != "" {
		slog.Info("Basic auth enabled", "user", cfg.auth.Username)
	}

	server := ledger.NewServer(service, cfg.auth)
	if err := server.Start(ctx, fmt.Sprintf(":%d", cfg.port)); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	slog.Info("Shut down cleanly")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
