package domain

import "errors"

// Common validation errors for Task
var (
	ErrNilTaskType    = errors.New("task requires a task type")
	ErrEmptyTaskTitle = errors.New("task requires a target page title")
)

// Task pairs a task type with a candidate page. Tasks are ephemeral: they
// are constructed per search result and never persisted.
type Task struct {
	TaskType *TaskType `json:"taskType"`
	Title    string    `json:"title"`

	// Topics the page matched, with the per-topic relevance score the
	// search backend reported. Only set when the suggestion request
	// carried a topic filter.
	MatchedTopics []TopicScore `json:"matchedTopics,omitempty"`

	// SurfacedTemplates lists which of the task type's defining templates
	// are present on the page. Only set for template-based tasks.
	SurfacedTemplates []string `json:"surfacedTemplates,omitempty"`
}

// TopicScore is a topic ID with the relevance score a page scored for it.
type TopicScore struct {
	TopicID string  `json:"topicId"`
	Score   float64 `json:"score"`
}

// NewTask creates a Task for the given type and target page title.
// Returns an error if validation fails.
func NewTask(taskType *TaskType, title string) (*Task, error) {
	task := &Task{
		TaskType: taskType,
		Title:    title,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// NewTemplateBasedTask creates a Task whose candidate page was matched
// through maintenance templates, recording which of the task type's
// defining templates are present on the page.
func NewTemplateBasedTask(taskType *TaskType, title string, surfacedTemplates []string) (*Task, error) {
	task, err := NewTask(taskType, title)
	if err != nil {
		return nil, err
	}
	task.SurfacedTemplates = surfacedTemplates
	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.TaskType == nil {
		return ErrNilTaskType
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	return nil
}
