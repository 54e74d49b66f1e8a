package suggester

import (
	"strings"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// SearchStrategy builds backend query strings for a (task type, topics)
// pair. The grammar targets the CirrusSearch-style keyword syntax the
// opaque backend understands: hastemplate, morelike and articletopic
// clauses joined by spaces, with a leading minus for negation.
type SearchStrategy struct{}

// NewSearchStrategy creates a SearchStrategy.
func NewSearchStrategy() *SearchStrategy {
	return &SearchStrategy{}
}

// BuildQuery combines the task type's template clause, the topic clause and
// the exclusion clause into one query string. An empty topic list skips the
// topic clause entirely.
func (s *SearchStrategy) BuildQuery(taskType *domain.TaskType, topics []*domain.Topic) string {
	var clauses []string

	if clause := templateClause(taskType.Templates, false); clause != "" {
		clauses = append(clauses, clause)
	}

	if clause := s.topicClause(topics); clause != "" {
		clauses = append(clauses, clause)
	}

	if clause := templateClause(taskType.ExcludedTemplates, true); clause != "" {
		clauses = append(clauses, clause)
	}

	return strings.Join(clauses, " ")
}

// topicClause builds the similarity or classification clause for the topic
// filter. All topics of one request share a variant, so the first topic
// decides which keyword is used.
func (s *SearchStrategy) topicClause(topics []*domain.Topic) string {
	if len(topics) == 0 {
		return ""
	}

	switch topics[0].Variant {
	case domain.TopicVariantMorelike:
		var titles []string
		for _, t := range topics {
			titles = append(titles, t.ReferenceTitles...)
		}
		if len(titles) == 0 {
			return ""
		}
		return `morelikethis:"` + strings.Join(titles, "|") + `"`
	case domain.TopicVariantOres:
		var labels []string
		for _, t := range topics {
			labels = append(labels, t.OresTopics...)
		}
		if len(labels) == 0 {
			return ""
		}
		return "articletopic:" + strings.Join(labels, "|")
	default:
		return ""
	}
}

// templateClause builds a "has any of these templates" clause, negated when
// excluded is set.
func templateClause(templates []string, excluded bool) string {
	if len(templates) == 0 {
		return ""
	}

	clause := `hastemplate:"` + strings.Join(templates, "|") + `"`
	if excluded {
		clause = "-" + clause
	}
	return clause
}
