// Package main implements the entry point for the growthtasks server,
// which suggests editing tasks to newcomer users and manages the
// link-recommendation lifecycle from generation to submission.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/quillwiki/growthtasks/internal/config"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration, sets up logging and wires the
// application dependencies.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"replica_configured", cfg.Database.ReplicaURL != "")

	app, err := newApplication(context.Background(), cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	return app, nil
}
