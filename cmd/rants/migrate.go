package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/silverfisk/rants/internal/config"
	"github.com/silverfisk/rants/internal/store"
)

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(store.Config{Path: cfg.State.SQLitePath})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	slog.Info("schema applied", "path", cfg.State.SQLitePath)
	return nil
}
