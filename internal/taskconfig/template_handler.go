package taskconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// Template-based handler validation errors
var (
	ErrNoTemplates     = errors.New("template-based task type requires at least one template")
	ErrMissingTemplate = errors.New("referenced template does not exist")
)

// templateEntry is the config schema shared by template-driven task types.
type templateEntry struct {
	Type               string   `json:"type,omitempty"`
	Group              string   `json:"group,omitempty"`
	Templates          []string `json:"templates"`
	ExcludedTemplates  []string `json:"excludedTemplates,omitempty"`
	ExcludedCategories []string `json:"excludedCategories,omitempty"`
}

// TemplateBasedHandler parses the legacy template-based task types: a task
// type is defined by the maintenance templates marking its candidate pages.
type TemplateBasedHandler struct {
	resolver wiki.TitleResolver
}

// NewTemplateBasedHandler creates the default task-type handler. The
// resolver is used to verify that referenced templates exist.
func NewTemplateBasedHandler(resolver wiki.TitleResolver) *TemplateBasedHandler {
	return &TemplateBasedHandler{resolver: resolver}
}

// ID implements TaskTypeHandler.
func (h *TemplateBasedHandler) ID() string {
	return domain.HandlerTemplateBased
}

// Parse implements TaskTypeHandler. The entry's "group" field carries the
// difficulty; it defaults to easy when absent.
func (h *TemplateBasedHandler) Parse(id string, entry json.RawMessage) (*domain.TaskType, error) {
	var cfg templateEntry
	if err := json.Unmarshal(entry, &cfg); err != nil {
		return nil, fmt.Errorf("task type %q: %w", id, err)
	}

	if len(cfg.Templates) == 0 {
		return nil, fmt.Errorf("task type %q: %w", id, ErrNoTemplates)
	}

	taskType, err := domain.NewTaskType(id, domain.TaskTypeDifficulty(cfg.Group), domain.HandlerTemplateBased)
	if err != nil {
		return nil, fmt.Errorf("task type %q: %w", id, err)
	}
	taskType.Templates = cfg.Templates
	taskType.ExcludedTemplates = cfg.ExcludedTemplates
	taskType.ExcludedCategories = cfg.ExcludedCategories

	return taskType, nil
}

// Validate implements TaskTypeHandler. It verifies in one batch round-trip
// that every referenced template resolves to an existing page.
func (h *TemplateBasedHandler) Validate(ctx context.Context, taskType *domain.TaskType) error {
	titles := make([]string, 0, len(taskType.Templates)+len(taskType.ExcludedTemplates))
	titles = append(titles, taskType.Templates...)
	titles = append(titles, taskType.ExcludedTemplates...)

	resolved, err := h.resolver.ResolveTitles(ctx, titles)
	if err != nil {
		return fmt.Errorf("task type %q: template resolution failed: %w", taskType.ID, err)
	}

	for _, title := range titles {
		if _, ok := resolved[title]; !ok {
			return fmt.Errorf("task type %q: %w: %q", taskType.ID, ErrMissingTemplate, title)
		}
	}

	return nil
}
