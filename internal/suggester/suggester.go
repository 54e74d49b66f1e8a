// Package suggester implements the search-based newcomer task suggestion
// pipeline: per-task-type query building, dispatch to the opaque search
// backend, fair merging of the per-type result streams, and the per-user
// caching decorator.
package suggester

import (
	"context"
	"errors"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// Common suggester errors
var (
	// ErrUnknownTaskType is returned when the request filters on a task
	// type ID that is not configured. Unlike topic filters (best-effort),
	// an unknown task type fails the whole call.
	ErrUnknownTaskType = errors.New("unknown task type in filter")

	// ErrNoTaskTypes is returned when no task types are available at all,
	// typically because the configuration failed to load.
	ErrNoTaskTypes = errors.New("no task types available")
)

// Request describes one suggestion lookup.
type Request struct {
	UserID int64

	// TaskTypes filters the suggestion to the given task type IDs.
	// Empty means all configured task types.
	TaskTypes []string

	// Topics filters the suggestion to pages matching the given topic
	// IDs. Empty means no topic filtering. Unknown IDs are ignored.
	Topics []string

	Limit  int
	Offset int

	// Debug disables caching and randomization shortcuts for inspection.
	Debug bool
}

// Filters returns the request's filters in TaskSet form.
func (r Request) Filters() domain.TaskSetFilters {
	return domain.TaskSetFilters{TaskTypes: r.TaskTypes, Topics: r.Topics}
}

// TaskSuggester produces a bounded set of candidate tasks for a user.
type TaskSuggester interface {
	Suggest(ctx context.Context, req Request) (*domain.TaskSet, error)
}

// SearchHit is one scored page match from the search backend.
type SearchHit struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// SearchResult is the backend's answer to one query.
type SearchResult struct {
	Hits      []SearchHit `json:"hits"`
	TotalHits int         `json:"totalHits"`
}

// SearchBackend is the opaque full-text search engine. Implementations must
// bound each call with a timeout; a single failed query aborts the whole
// suggestion rather than silently degrading.
type SearchBackend interface {
	Search(ctx context.Context, query string, limit, offset int, randomSort bool) (*SearchResult, error)
}

// ConfigProvider is the read side of the task-type/topic registry.
// Satisfied by *taskconfig.Loader.
type ConfigProvider interface {
	GetTaskTypes(ctx context.Context) map[string]*domain.TaskType
	GetTopics(ctx context.Context) map[string]*domain.Topic
}
