// Package task provides the in-process deferred work runner used to move
// slow side effects (recommendation cleanup, search index resets) off the
// request critical path. Work is best effort: a crash between enqueue and
// execution loses it, and the next maintenance run repairs the difference.
package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type identifiers
const (
	// TaskTypeRecommendationCleanup deletes consumed recommendation rows
	// and optionally resets the page's search index tags.
	TaskTypeRecommendationCleanup = "recommendation_cleanup"
)

// Task represents a unit of deferred work.
// Version: 1.0
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Deferrer is the write side of the runner, exposed to services that
// enqueue deferred work.
type Deferrer interface {
	// Submit enqueues a task. Returns an error when the queue is full;
	// callers treat that as "run it later via maintenance", not a
	// request failure.
	Submit(task Task) error
}
