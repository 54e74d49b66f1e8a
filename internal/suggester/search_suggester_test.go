package suggester

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// fakeConfig is an in-memory ConfigProvider.
type fakeConfig struct {
	taskTypes map[string]*domain.TaskType
	topics    map[string]*domain.Topic
}

func (f *fakeConfig) GetTaskTypes(_ context.Context) map[string]*domain.TaskType {
	return f.taskTypes
}

func (f *fakeConfig) GetTopics(_ context.Context) map[string]*domain.Topic {
	return f.topics
}

// fakeBackend records queries and serves canned results keyed by substring.
type fakeBackend struct {
	results map[string]*SearchResult // keyed by task type's first template
	err     error
	queries []string
}

func (f *fakeBackend) Search(_ context.Context, query string, _, _ int, _ bool) (*SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	for key, result := range f.results {
		if key != "" && strings.Contains(query, key) {
			return result, nil
		}
	}
	return &SearchResult{}, nil
}

func templateTaskType(id string, templates ...string) *domain.TaskType {
	return &domain.TaskType{
		ID:         id,
		Difficulty: domain.DifficultyEasy,
		HandlerID:  domain.HandlerTemplateBased,
		Templates:  templates,
	}
}

func hitsFor(titles ...string) []SearchHit {
	hits := make([]SearchHit, len(titles))
	for i, title := range titles {
		hits[i] = SearchHit{Title: title, Score: float64(len(titles) - i)}
	}
	return hits
}

func newSuggester(backend SearchBackend, cfg ConfigProvider) *SearchTaskSuggester {
	return NewSearchTaskSuggester(backend, cfg, nil, rand.New(rand.NewSource(7)), nil)
}

func TestNewSearchTaskSuggesterNilGuards(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewSearchTaskSuggester(nil, &fakeConfig{}, nil, rand.New(rand.NewSource(1)), nil)
	})
	assert.Panics(t, func() {
		NewSearchTaskSuggester(&fakeBackend{}, nil, nil, rand.New(rand.NewSource(1)), nil)
	})
	assert.Panics(t, func() {
		NewSearchTaskSuggester(&fakeBackend{}, &fakeConfig{}, nil, nil, nil)
	})
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	t.Run("single task type returns its hits", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{taskTypes: map[string]*domain.TaskType{
			"copyedit": templateTaskType("copyedit", "Copyedit"),
		}}
		backend := &fakeBackend{results: map[string]*SearchResult{
			"Copyedit": {Hits: hitsFor("A", "B", "C"), TotalHits: 3},
		}}

		set, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID:    1,
			TaskTypes: []string{"copyedit"},
			Limit:     5,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, set.Count())
		assert.Equal(t, 3, set.TotalCount)
	})

	t.Run("total count sums backend totals, not merged tasks", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{taskTypes: map[string]*domain.TaskType{
			"copyedit": templateTaskType("copyedit", "Copyedit"),
			"expand":   templateTaskType("expand", "Stub"),
		}}
		backend := &fakeBackend{results: map[string]*SearchResult{
			"Copyedit": {Hits: hitsFor("A", "B"), TotalHits: 120},
			"Stub":     {Hits: hitsFor("C", "D"), TotalHits: 80},
		}}

		set, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID: 1,
			Limit:  3,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, set.Count(), "limit truncates the merged stream")
		assert.Equal(t, 200, set.TotalCount)
	})

	t.Run("unknown task type fails the call", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{taskTypes: map[string]*domain.TaskType{
			"copyedit": templateTaskType("copyedit", "Copyedit"),
		}}
		backend := &fakeBackend{}

		_, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID:    1,
			TaskTypes: []string{"copyedit", "vanished"},
			Limit:     5,
		})
		assert.ErrorIs(t, err, ErrUnknownTaskType)
	})

	t.Run("unknown topic ids are ignored", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{
			taskTypes: map[string]*domain.TaskType{
				"copyedit": templateTaskType("copyedit", "Copyedit"),
			},
			topics: map[string]*domain.Topic{},
		}
		backend := &fakeBackend{results: map[string]*SearchResult{
			"Copyedit": {Hits: hitsFor("A"), TotalHits: 1},
		}}

		set, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID: 1,
			Topics: []string{"no-such-topic"},
			Limit:  5,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, set.Count())
		// The unknown topic resolved to nothing, so no topic clause.
		require.Len(t, backend.queries, 1)
		assert.NotContains(t, backend.queries[0], "morelikethis")
		assert.NotContains(t, backend.queries[0], "articletopic")
	})

	t.Run("backend error aborts the whole call", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{taskTypes: map[string]*domain.TaskType{
			"copyedit": templateTaskType("copyedit", "Copyedit"),
			"expand":   templateTaskType("expand", "Stub"),
		}}
		backendErr := errors.New("search timeout")
		backend := &fakeBackend{err: backendErr}

		_, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID: 1,
			Limit:  5,
		})
		assert.ErrorIs(t, err, backendErr)
	})

	t.Run("non search-compatible handler is skipped with no error", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{taskTypes: map[string]*domain.TaskType{
			"copyedit": templateTaskType("copyedit", "Copyedit"),
			"images": {
				ID: "images", Difficulty: domain.DifficultyMedium,
				HandlerID: "image-recommendation-v0",
			},
		}}
		backend := &fakeBackend{results: map[string]*SearchResult{
			"Copyedit": {Hits: hitsFor("A"), TotalHits: 1},
		}}

		set, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID: 1,
			Limit:  5,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, set.Count())
		assert.Len(t, backend.queries, 1, "only the compatible task type is queried")
	})

	t.Run("topic filter pins offset to zero and annotates tasks", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{
			taskTypes: map[string]*domain.TaskType{
				"copyedit": templateTaskType("copyedit", "Copyedit"),
			},
			topics: map[string]*domain.Topic{
				"science": {
					ID: "science", Variant: domain.TopicVariantMorelike,
					Label: "Science", ReferenceTitles: []string{"Physics"},
				},
			},
		}
		backend := &fakeBackend{results: map[string]*SearchResult{
			"Copyedit": {Hits: hitsFor("A", "B", "C"), TotalHits: 3},
		}}

		set, err := newSuggester(backend, cfg).Suggest(context.Background(), Request{
			UserID: 1,
			Topics: []string{"science"},
			Limit:  5,
			Offset: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, set.Offset, "offsets are meaningless for shuffled results")
		require.NotEmpty(t, set.Tasks)
		require.Len(t, set.Tasks[0].MatchedTopics, 1)
		assert.Equal(t, "science", set.Tasks[0].MatchedTopics[0].TopicID)
		require.Len(t, backend.queries, 1)
		assert.Contains(t, backend.queries[0], `morelikethis:"Physics"`)
	})

	t.Run("no configured task types", func(t *testing.T) {
		t.Parallel()
		cfg := &fakeConfig{taskTypes: map[string]*domain.TaskType{}}
		_, err := newSuggester(&fakeBackend{}, cfg).Suggest(context.Background(), Request{
			UserID: 1, Limit: 5,
		})
		assert.ErrorIs(t, err, ErrNoTaskTypes)
	})
}
