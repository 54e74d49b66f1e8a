package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quillwiki/growthtasks/internal/store"
)

// PostgreSQL error codes
const (
	pgUniqueViolationCode     = "23505"
	pgForeignKeyViolationCode = "23503"
	pgReadOnlyTransactionCode = "25006"
)

// isUniqueViolation checks if the given error is a PostgreSQL unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

// isReadOnlyError checks if the given error means the database rejected a
// write because it is in read-only mode (e.g. during a failover).
func isReadOnlyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgReadOnlyTransactionCode
}

// mapWriteError translates low-level write failures into the store error
// taxonomy. Read-only mode gets its own sentinel so the UI can present
// "try again later" instead of a generic failure.
func mapWriteError(err error, entity, operation string) error {
	if err == nil {
		return nil
	}
	if isReadOnlyError(err) {
		return fmt.Errorf("%w: %s %s", store.ErrReadOnly, operation, entity)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s", store.ErrDuplicate, operation, entity)
	}
	return store.NewStoreError(entity, operation, "database write failed", err)
}
