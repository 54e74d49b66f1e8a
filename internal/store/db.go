package store

import (
	"context"
	"database/sql"
)

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx, allowing our code
// to work with either a database connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ReadFlags selects which database a read is served from.
type ReadFlags uint8

const (
	// ReadNormal allows the read to be served from a replica. Replica
	// reads may lag the primary; suitable for display paths.
	ReadNormal ReadFlags = iota

	// ReadLatest forces the read onto the primary. Required for any read
	// that gates a write decision, where replication lag would cause
	// double work or lost updates.
	ReadLatest
)
