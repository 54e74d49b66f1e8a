package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/quillwiki/growthtasks/internal/config"
)

// setupDatabase establishes a connection pool to the database at url and
// verifies it with a ping.
func setupDatabase(url string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established")
	return db, nil
}

// setupDatabases opens the primary connection and, when a replica URL is
// configured, a second read-only pool. With no replica configured both
// return values point at the primary.
func setupDatabases(cfg config.DatabaseConfig, log *slog.Logger) (primary, replica *sql.DB, err error) {
	primary, err = setupDatabase(cfg.URL, log.With(slog.String("db", "primary")))
	if err != nil {
		return nil, nil, err
	}

	if cfg.ReplicaURL == "" {
		return primary, primary, nil
	}

	replica, err = setupDatabase(cfg.ReplicaURL, log.With(slog.String("db", "replica")))
	if err != nil {
		_ = primary.Close()
		return nil, nil, err
	}

	return primary, replica, nil
}
