package domain

import "errors"

// TopicVariant discriminates how a topic matches pages.
type TopicVariant string

// Possible topic variants
const (
	// TopicVariantMorelike matches pages by similarity to a set of
	// reference pages, using the search backend's morelike feature.
	TopicVariantMorelike TopicVariant = "morelike"

	// TopicVariantOres matches pages carrying machine-classification
	// topic labels produced by the ORES service.
	TopicVariantOres TopicVariant = "ores"
)

// Common validation errors for Topic
var (
	ErrEmptyTopicID        = errors.New("topic ID cannot be empty")
	ErrInvalidTopicVariant = errors.New("invalid topic variant")
	ErrEmptyTopicTitles    = errors.New("morelike topic requires reference page titles")
	ErrEmptyTopicGroup     = errors.New("ores topic requires a group")
	ErrEmptyOresLabels     = errors.New("ores topic requires ORES topic labels")
)

// Topic is a subject-matter filter for task suggestions. Exactly one of the
// variant-specific field sets is populated, according to Variant. Immutable.
type Topic struct {
	ID      string       `json:"id"`
	Variant TopicVariant `json:"variant"`

	// Morelike variant: label plus the reference pages used for
	// similarity search.
	Label           string   `json:"label,omitempty"`
	ReferenceTitles []string `json:"referenceTitles,omitempty"`

	// Ores variant: display group plus the ORES classification labels
	// belonging to this topic.
	Group      string   `json:"group,omitempty"`
	OresTopics []string `json:"oresTopics,omitempty"`
}

// NewMorelikeTopic creates a similarity-based Topic.
// Returns an error if validation fails.
func NewMorelikeTopic(id, label string, referenceTitles []string) (*Topic, error) {
	t := &Topic{
		ID:              id,
		Variant:         TopicVariantMorelike,
		Label:           label,
		ReferenceTitles: referenceTitles,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// NewOresTopic creates a classification-based Topic.
// Returns an error if validation fails.
func NewOresTopic(id, group string, oresTopics []string) (*Topic, error) {
	t := &Topic{
		ID:         id,
		Variant:    TopicVariantOres,
		Group:      group,
		OresTopics: oresTopics,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Topic has valid data for its variant.
func (t *Topic) Validate() error {
	if t.ID == "" {
		return ErrEmptyTopicID
	}

	switch t.Variant {
	case TopicVariantMorelike:
		if len(t.ReferenceTitles) == 0 {
			return ErrEmptyTopicTitles
		}
	case TopicVariantOres:
		if t.Group == "" {
			return ErrEmptyTopicGroup
		}
		if len(t.OresTopics) == 0 {
			return ErrEmptyOresLabels
		}
	default:
		return ErrInvalidTopicVariant
	}

	return nil
}
