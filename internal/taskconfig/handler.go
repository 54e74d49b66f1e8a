// Package taskconfig loads and validates the task-type and topic registries
// from JSON documents stored on wiki pages.
package taskconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// Common configuration errors
var (
	// ErrMalformedConfig is returned when a config document is not the
	// expected object-of-objects shape.
	ErrMalformedConfig = errors.New("configuration must be a JSON object of objects")

	// ErrUnknownHandler is returned (per entry) when a task type names a
	// handler that is not registered.
	ErrUnknownHandler = errors.New("unknown task type handler")

	// ErrAlreadyLoaded is returned when DisableTaskType is called after
	// the first load.
	ErrAlreadyLoaded = errors.New("task types already loaded; disable must happen before first load")
)

// TaskTypeHandler parses and validates one task-type config entry. Each
// handler owns the schema of its entries; the loader only dispatches.
type TaskTypeHandler interface {
	// ID returns the handler identifier entries select it by.
	ID() string

	// Parse builds a TaskType from a raw config entry.
	Parse(id string, entry json.RawMessage) (*domain.TaskType, error)

	// Validate checks a constructed TaskType against the live wiki (e.g.
	// that its referenced templates exist). May perform I/O.
	Validate(ctx context.Context, taskType *domain.TaskType) error
}

// HandlerRegistry maps handler IDs to their TaskTypeHandler.
type HandlerRegistry struct {
	handlers map[string]TaskTypeHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]TaskTypeHandler)}
}

// Register adds a handler; a handler registered twice under the same ID
// replaces the previous one.
func (r *HandlerRegistry) Register(h TaskTypeHandler) {
	r.handlers[h.ID()] = h
}

// Get returns the handler for the given ID, or ErrUnknownHandler.
func (r *HandlerRegistry) Get(id string) (TaskTypeHandler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, id)
	}
	return h, nil
}

// IDs returns the registered handler IDs in sorted order.
func (r *HandlerRegistry) IDs() []string {
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
