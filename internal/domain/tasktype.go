package domain

import "errors"

// TaskTypeDifficulty classifies how demanding a task type is for a newcomer.
type TaskTypeDifficulty string

// Possible task type difficulty values
const (
	DifficultyEasy   TaskTypeDifficulty = "easy"
	DifficultyMedium TaskTypeDifficulty = "medium"
	DifficultyHard   TaskTypeDifficulty = "hard"
)

// Well-known handler identifiers. The handler determines how a task type's
// configuration entry is parsed and how candidate pages are found.
const (
	// HandlerTemplateBased finds candidate pages via maintenance templates.
	// It is the default when a config entry names no handler.
	HandlerTemplateBased = "template-based"

	// HandlerLinkRecommendation serves machine-generated link suggestions.
	HandlerLinkRecommendation = "link-recommendation"
)

// Common validation errors for TaskType
var (
	ErrEmptyTaskTypeID      = errors.New("task type ID cannot be empty")
	ErrEmptyTaskTypeHandler = errors.New("task type handler ID cannot be empty")
	ErrInvalidDifficulty    = errors.New("invalid task type difficulty")
)

// TaskType describes one category of suggested edit (copyedit, add-link,
// add-image, ...). Instances are immutable after construction; the
// configuration loader builds a fresh set on every reload.
type TaskType struct {
	ID                 string             `json:"id"`
	Difficulty         TaskTypeDifficulty `json:"difficulty"`
	HandlerID          string             `json:"handlerId"`
	Templates          []string           `json:"templates,omitempty"`
	ExcludedTemplates  []string           `json:"excludedTemplates,omitempty"`
	ExcludedCategories []string           `json:"excludedCategories,omitempty"`
	// Extra carries handler-specific settings (e.g. link-recommendation
	// confidence bounds) that the core does not interpret.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewTaskType creates a TaskType with the given ID, difficulty and handler.
// Difficulty defaults to easy and the handler to the template-based handler
// when left empty. Returns an error if validation fails.
func NewTaskType(id string, difficulty TaskTypeDifficulty, handlerID string) (*TaskType, error) {
	if difficulty == "" {
		difficulty = DifficultyEasy
	}
	if handlerID == "" {
		handlerID = HandlerTemplateBased
	}

	tt := &TaskType{
		ID:         id,
		Difficulty: difficulty,
		HandlerID:  handlerID,
	}

	if err := tt.Validate(); err != nil {
		return nil, err
	}

	return tt, nil
}

// Validate checks if the TaskType has valid data.
// Returns an error if any field fails validation.
func (t *TaskType) Validate() error {
	if t.ID == "" {
		return ErrEmptyTaskTypeID
	}

	if t.HandlerID == "" {
		return ErrEmptyTaskTypeHandler
	}

	if !isValidDifficulty(t.Difficulty) {
		return ErrInvalidDifficulty
	}

	return nil
}

// SearchCompatible reports whether candidate pages for this task type can be
// found through the search backend. Handlers that serve pre-computed
// suggestions (link recommendations) still qualify; they restrict candidates
// with a dedicated search clause instead of a template clause.
func (t *TaskType) SearchCompatible() bool {
	switch t.HandlerID {
	case HandlerTemplateBased, HandlerLinkRecommendation:
		return true
	default:
		return false
	}
}

func isValidDifficulty(d TaskTypeDifficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}
