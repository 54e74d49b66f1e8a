package taskconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// Link-recommendation handler validation errors
var (
	ErrInvalidScoreBound = errors.New("minimum link score must be within [0, 1]")
	ErrInvalidLinkCount  = errors.New("maximum links per task must be positive")
	ErrInvalidDailyCap   = errors.New("max tasks per day must be positive")
)

// Extra-data keys the link-recommendation handler stores on its task type.
const (
	ExtraMinimumLinkScore = "minimumLinkScore"
	ExtraMaxLinksPerTask  = "maximumLinksPerTask"
	ExtraMaxTasksPerDay   = "maxTasksPerDay"
	ExtraExcludedSections = "excludedSections"
)

// linkRecommendationEntry is the config schema of the add-link task type.
type linkRecommendationEntry struct {
	Type              string   `json:"type,omitempty"`
	Group             string   `json:"group,omitempty"`
	MinimumLinkScore  *float64 `json:"minimumLinkScore,omitempty"`
	MaxLinksPerTask   *int     `json:"maximumLinksPerTask,omitempty"`
	MaxTasksPerDay    *int     `json:"maxTasksPerDay,omitempty"`
	ExcludedSections  []string `json:"excludedSections,omitempty"`
	ExcludedTemplates []string `json:"excludedTemplates,omitempty"`
}

// Defaults applied when the config entry leaves a knob unset.
const (
	defaultMinimumLinkScore = 0.6
	defaultMaxLinksPerTask  = 3
	defaultMaxTasksPerDay   = 25
)

// LinkRecommendationHandler parses the machine-suggested "add a link" task
// type. Its candidates are not template-matched; they are pages the link
// recommendation service has pre-computed suggestions for.
type LinkRecommendationHandler struct{}

// NewLinkRecommendationHandler creates the add-link task-type handler.
func NewLinkRecommendationHandler() *LinkRecommendationHandler {
	return &LinkRecommendationHandler{}
}

// ID implements TaskTypeHandler.
func (h *LinkRecommendationHandler) ID() string {
	return domain.HandlerLinkRecommendation
}

// Parse implements TaskTypeHandler.
func (h *LinkRecommendationHandler) Parse(id string, entry json.RawMessage) (*domain.TaskType, error) {
	var cfg linkRecommendationEntry
	if err := json.Unmarshal(entry, &cfg); err != nil {
		return nil, fmt.Errorf("task type %q: %w", id, err)
	}

	minScore := defaultMinimumLinkScore
	if cfg.MinimumLinkScore != nil {
		minScore = *cfg.MinimumLinkScore
	}
	maxLinks := defaultMaxLinksPerTask
	if cfg.MaxLinksPerTask != nil {
		maxLinks = *cfg.MaxLinksPerTask
	}
	maxPerDay := defaultMaxTasksPerDay
	if cfg.MaxTasksPerDay != nil {
		maxPerDay = *cfg.MaxTasksPerDay
	}

	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("task type %q: %w", id, ErrInvalidScoreBound)
	}
	if maxLinks <= 0 {
		return nil, fmt.Errorf("task type %q: %w", id, ErrInvalidLinkCount)
	}
	if maxPerDay <= 0 {
		return nil, fmt.Errorf("task type %q: %w", id, ErrInvalidDailyCap)
	}

	taskType, err := domain.NewTaskType(id, domain.TaskTypeDifficulty(cfg.Group), domain.HandlerLinkRecommendation)
	if err != nil {
		return nil, fmt.Errorf("task type %q: %w", id, err)
	}
	taskType.ExcludedTemplates = cfg.ExcludedTemplates
	taskType.Extra = map[string]any{
		ExtraMinimumLinkScore: minScore,
		ExtraMaxLinksPerTask:  maxLinks,
		ExtraMaxTasksPerDay:   maxPerDay,
	}
	if len(cfg.ExcludedSections) > 0 {
		taskType.Extra[ExtraExcludedSections] = cfg.ExcludedSections
	}

	return taskType, nil
}

// Validate implements TaskTypeHandler. The entry schema is fully checked in
// Parse; no live-wiki validation is needed for this handler.
func (h *LinkRecommendationHandler) Validate(_ context.Context, _ *domain.TaskType) error {
	return nil
}

// MaxTasksPerDay reads the daily cap off a link-recommendation task type,
// falling back to the default when the extra data is missing or mistyped.
func MaxTasksPerDay(taskType *domain.TaskType) int {
	if taskType == nil || taskType.Extra == nil {
		return defaultMaxTasksPerDay
	}
	switch v := taskType.Extra[ExtraMaxTasksPerDay].(type) {
	case int:
		return v
	case float64:
		// JSON round-trips through the cache turn ints into float64.
		return int(v)
	default:
		return defaultMaxTasksPerDay
	}
}

// MinimumLinkScore reads the confidence floor off a link-recommendation
// task type, falling back to the default when missing or mistyped.
func MinimumLinkScore(taskType *domain.TaskType) float64 {
	if taskType == nil || taskType.Extra == nil {
		return defaultMinimumLinkScore
	}
	if v, ok := taskType.Extra[ExtraMinimumLinkScore].(float64); ok {
		return v
	}
	return defaultMinimumLinkScore
}

// MaxLinksPerTask reads the per-task link cap off a link-recommendation
// task type, falling back to the default when missing or mistyped.
func MaxLinksPerTask(taskType *domain.TaskType) int {
	if taskType == nil || taskType.Extra == nil {
		return defaultMaxLinksPerTask
	}
	switch v := taskType.Extra[ExtraMaxLinksPerTask].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return defaultMaxLinksPerTask
	}
}
