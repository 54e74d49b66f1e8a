package taskconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// Loader loads, validates and caches the task-type and topic registries.
// It is the sole owner of the registry for its process lifetime; the
// suggester and cache layers only read from it.
//
// Load results (including errors) are cached until Invalidate is called for
// the corresponding config page title. It is the caller's responsibility to
// detect edits to the watched pages and invalidate.
type Loader struct {
	pages         wiki.ConfigPageLoader
	registry      *HandlerRegistry
	taskTypeTitle string
	topicTitle    string
	logger        *slog.Logger

	mu       sync.Mutex
	disabled map[string]struct{}

	taskTypesCached bool
	taskTypes       []*domain.TaskType
	taskTypesErr    error
	loadWarnings    []error

	topicsCached bool
	topics       []*domain.Topic
	topicsErr    error
}

// NewLoader creates a Loader reading task types from taskTypeTitle and
// topics from topicTitle through the given page loader.
func NewLoader(
	pages wiki.ConfigPageLoader,
	registry *HandlerRegistry,
	taskTypeTitle, topicTitle string,
	log *slog.Logger,
) *Loader {
	if log == nil {
		log = slog.Default()
	}

	return &Loader{
		pages:         pages,
		registry:      registry,
		taskTypeTitle: taskTypeTitle,
		topicTitle:    topicTitle,
		logger:        log.With(slog.String("component", "taskconfig_loader")),
		disabled:      make(map[string]struct{}),
	}
}

// DisableTaskType excludes a configured task type from loading. It must be
// called before the first LoadTaskTypes; afterwards it returns
// ErrAlreadyLoaded so a silently ignored disable cannot go unnoticed.
func (l *Loader) DisableTaskType(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.taskTypesCached {
		return ErrAlreadyLoaded
	}
	l.disabled[id] = struct{}{}
	return nil
}

// Invalidate drops the cached load result for the config page with the
// given title. Unknown titles are ignored.
func (l *Loader) Invalidate(title string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch title {
	case l.taskTypeTitle:
		l.taskTypesCached = false
		l.taskTypes = nil
		l.taskTypesErr = nil
		l.loadWarnings = nil
	case l.topicTitle:
		l.topicsCached = false
		l.topics = nil
		l.topicsErr = nil
	}
}

// LoadTaskTypes loads the task-type registry, caching the result (or the
// error) for the lifetime of the loader. Per-entry validation failures do
// not fail the load: the broken entry is skipped and a warning accumulated.
func (l *Loader) LoadTaskTypes(ctx context.Context) ([]*domain.TaskType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.taskTypesCached {
		return l.taskTypes, l.taskTypesErr
	}

	taskTypes, warnings, err := l.parseTaskTypes(ctx)
	l.taskTypesCached = true
	l.taskTypes = taskTypes
	l.taskTypesErr = err
	l.loadWarnings = warnings

	for _, w := range warnings {
		l.logger.Warn("task type entry skipped",
			slog.String("config_title", l.taskTypeTitle),
			slog.String("error", w.Error()))
	}

	return taskTypes, err
}

// LoadWarnings returns the per-entry validation errors accumulated by the
// last LoadTaskTypes. Empty when every entry parsed cleanly.
func (l *Loader) LoadWarnings() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadWarnings
}

func (l *Loader) parseTaskTypes(ctx context.Context) ([]*domain.TaskType, []error, error) {
	doc, err := l.pages.Load(ctx, l.taskTypeTitle)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load task type config %q: %w", l.taskTypeTitle, err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(doc, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var taskTypes []*domain.TaskType
	var warnings []error

	for _, id := range ids {
		if _, off := l.disabled[id]; off {
			continue
		}

		entry := entries[id]

		// Every entry must itself be an object.
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil {
			return nil, nil, fmt.Errorf("%w: entry %q is not an object", ErrMalformedConfig, id)
		}

		handlerID := domain.HandlerTemplateBased
		if raw, ok := fields["type"]; ok {
			if err := json.Unmarshal(raw, &handlerID); err != nil {
				warnings = append(warnings, fmt.Errorf("task type %q: invalid handler type: %w", id, err))
				continue
			}
		}

		handler, err := l.registry.Get(handlerID)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("task type %q: %w", id, err))
			continue
		}

		taskType, err := handler.Parse(id, entry)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}

		if err := handler.Validate(ctx, taskType); err != nil {
			warnings = append(warnings, err)
			continue
		}

		taskTypes = append(taskTypes, taskType)
	}

	return taskTypes, warnings, nil
}

// LoadTopics loads the topic registry, caching the result (or the error)
// for the lifetime of the loader. Unlike task types, ANY validation failure
// fails the whole load and produces no partial topics. The asymmetry with
// task-type loading is a behavioral contract, not an oversight.
func (l *Loader) LoadTopics(ctx context.Context) ([]*domain.Topic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.topicsCached {
		return l.topics, l.topicsErr
	}

	topics, err := l.parseTopics(ctx)
	l.topicsCached = true
	l.topics = topics
	l.topicsErr = err

	return topics, err
}

// topicDocument is the schema of the topic config page. TopicType selects
// the variant all topics of the document share.
type topicDocument struct {
	TopicType string                     `json:"topicType"`
	Groups    []string                   `json:"groups,omitempty"`
	Topics    map[string]json.RawMessage `json:"topics"`
}

type oresTopicEntry struct {
	Group      string   `json:"group"`
	OresTopics []string `json:"oresTopics"`
}

type morelikeTopicEntry struct {
	Label  string   `json:"label"`
	Titles []string `json:"titles"`
}

func (l *Loader) parseTopics(ctx context.Context) ([]*domain.Topic, error) {
	doc, err := l.pages.Load(ctx, l.topicTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to load topic config %q: %w", l.topicTitle, err)
	}

	var parsed topicDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if parsed.Topics == nil {
		return nil, fmt.Errorf("%w: missing topics object", ErrMalformedConfig)
	}

	ids := make([]string, 0, len(parsed.Topics))
	for id := range parsed.Topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var topics []*domain.Topic
	var errs []error

	switch parsed.TopicType {
	case string(domain.TopicVariantOres):
		knownGroups := make(map[string]struct{}, len(parsed.Groups))
		for _, g := range parsed.Groups {
			knownGroups[g] = struct{}{}
		}
		for _, id := range ids {
			var entry oresTopicEntry
			if err := json.Unmarshal(parsed.Topics[id], &entry); err != nil {
				errs = append(errs, fmt.Errorf("topic %q: %w", id, err))
				continue
			}
			if _, ok := knownGroups[entry.Group]; len(parsed.Groups) > 0 && !ok {
				errs = append(errs, fmt.Errorf("topic %q: group %q is not declared in groups", id, entry.Group))
				continue
			}
			topic, err := domain.NewOresTopic(id, entry.Group, entry.OresTopics)
			if err != nil {
				errs = append(errs, fmt.Errorf("topic %q: %w", id, err))
				continue
			}
			topics = append(topics, topic)
		}
	case string(domain.TopicVariantMorelike):
		for _, id := range ids {
			var entry morelikeTopicEntry
			if err := json.Unmarshal(parsed.Topics[id], &entry); err != nil {
				errs = append(errs, fmt.Errorf("topic %q: %w", id, err))
				continue
			}
			if entry.Label == "" {
				errs = append(errs, fmt.Errorf("topic %q: missing label", id))
				continue
			}
			topic, err := domain.NewMorelikeTopic(id, entry.Label, entry.Titles)
			if err != nil {
				errs = append(errs, fmt.Errorf("topic %q: %w", id, err))
				continue
			}
			topics = append(topics, topic)
		}
	default:
		return nil, fmt.Errorf("%w: unknown topic type %q", ErrMalformedConfig, parsed.TopicType)
	}

	if len(errs) > 0 {
		// All-or-nothing: a single bad topic voids the whole load.
		return nil, errors.Join(errs...)
	}

	return topics, nil
}

// GetTaskTypes returns the loaded task types keyed by ID. Empty on any load
// error, so consumers can degrade to "no suggestions available".
func (l *Loader) GetTaskTypes(ctx context.Context) map[string]*domain.TaskType {
	taskTypes, err := l.LoadTaskTypes(ctx)
	if err != nil {
		logger.FromContextOrDefault(ctx, l.logger).Warn("task type config unavailable",
			slog.String("error", err.Error()))
		return map[string]*domain.TaskType{}
	}

	byID := make(map[string]*domain.TaskType, len(taskTypes))
	for _, tt := range taskTypes {
		byID[tt.ID] = tt
	}
	return byID
}

// GetTopics returns the loaded topics keyed by ID. Empty on any load error.
func (l *Loader) GetTopics(ctx context.Context) map[string]*domain.Topic {
	topics, err := l.LoadTopics(ctx)
	if err != nil {
		logger.FromContextOrDefault(ctx, l.logger).Warn("topic config unavailable",
			slog.String("error", err.Error()))
		return map[string]*domain.Topic{}
	}

	byID := make(map[string]*domain.Topic, len(topics))
	for _, t := range topics {
		byID[t.ID] = t
	}
	return byID
}
