package suggester

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// SearchTaskSuggester finds candidate tasks by dispatching one search query
// per requested task type and merging the result streams fairly.
type SearchTaskSuggester struct {
	backend  SearchBackend
	config   ConfigProvider
	strategy *SearchStrategy
	metadata wiki.PageMetadataProvider
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Ensure SearchTaskSuggester implements TaskSuggester
var _ TaskSuggester = (*SearchTaskSuggester)(nil)

// NewSearchTaskSuggester creates a SearchTaskSuggester. The rng drives the
// final shuffle of topic-filtered results; pass a seeded source in tests.
// If logger is nil, a default logger will be used.
func NewSearchTaskSuggester(
	backend SearchBackend,
	config ConfigProvider,
	metadata wiki.PageMetadataProvider,
	rng *rand.Rand,
	log *slog.Logger,
) *SearchTaskSuggester {
	if backend == nil {
		panic("backend cannot be nil")
	}
	if config == nil {
		panic("config provider cannot be nil")
	}
	if rng == nil {
		panic("rng cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SearchTaskSuggester{
		backend:  backend,
		config:   config,
		strategy: NewSearchStrategy(),
		metadata: metadata,
		logger:   log.With(slog.String("component", "search_task_suggester")),
		rng:      rng,
	}
}

// Suggest implements TaskSuggester.
func (s *SearchTaskSuggester) Suggest(ctx context.Context, req Request) (*domain.TaskSet, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	taskTypesByID := s.config.GetTaskTypes(ctx)
	if len(taskTypesByID) == 0 {
		return nil, ErrNoTaskTypes
	}

	// Default the task type filter to every configured type, the topic
	// filter to none.
	taskTypeIDs := req.TaskTypes
	if len(taskTypeIDs) == 0 {
		taskTypeIDs = sortedKeys(taskTypesByID)
	}

	// Topic IDs resolve best-effort: unknown ones are dropped silently.
	topics := s.resolveTopics(ctx, req.Topics)

	streams := make([]resultStream, 0, len(taskTypeIDs))
	totalCount := 0

	for _, id := range taskTypeIDs {
		taskType, ok := taskTypesByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, id)
		}

		if !taskType.SearchCompatible() {
			log.Warn("task type skipped: handler not search compatible",
				slog.String("task_type", id),
				slog.String("handler", taskType.HandlerID))
			continue
		}

		query := s.strategy.BuildQuery(taskType, topics)
		// Random sort keeps template-matched results varied; with a topic
		// filter the similarity ranking takes precedence instead.
		randomSort := len(topics) == 0

		result, err := s.backend.Search(ctx, query, req.Limit, req.Offset, randomSort)
		if err != nil {
			// One failed query aborts the whole call; partial suggestion
			// sets would silently under-represent a task type.
			return nil, fmt.Errorf("search failed for task type %q: %w", id, err)
		}

		totalCount += result.TotalHits
		streams = append(streams, resultStream{taskTypeID: id, hits: result.Hits})
	}

	merged := interleave(streams, req.Limit)

	tasks, err := s.hydrate(ctx, taskTypesByID, topics, merged)
	if err != nil {
		return nil, err
	}

	offset := req.Offset
	if len(topics) > 0 {
		// Similarity ranking already imposed an order on each stream, so
		// interleaving alone cannot provide randomness: shuffle the final
		// list. Offsets stop being meaningful once results from multiple
		// randomized backends are mixed, so pin the offset to zero.
		s.shuffle(tasks)
		offset = 0
	}

	return domain.NewTaskSet(tasks, totalCount, offset, req.Filters())
}

// resolveTopics maps topic IDs to Topic objects, dropping unknown IDs.
func (s *SearchTaskSuggester) resolveTopics(ctx context.Context, ids []string) []*domain.Topic {
	if len(ids) == 0 {
		return nil
	}

	topicsByID := s.config.GetTopics(ctx)
	topics := make([]*domain.Topic, 0, len(ids))
	for _, id := range ids {
		if topic, ok := topicsByID[id]; ok {
			topics = append(topics, topic)
		}
	}
	return topics
}

// hydrate turns merged hits into Task objects and fills per-title template
// metadata in one batch lookup.
func (s *SearchTaskSuggester) hydrate(
	ctx context.Context,
	taskTypesByID map[string]*domain.TaskType,
	topics []*domain.Topic,
	merged []typedHit,
) ([]*domain.Task, error) {
	var templatesByTitle map[string][]string
	if s.metadata != nil && len(merged) > 0 {
		titles := make([]string, 0, len(merged))
		for _, th := range merged {
			titles = append(titles, th.hit.Title)
		}
		var err error
		templatesByTitle, err = s.metadata.GetTemplates(ctx, titles)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page metadata: %w", err)
		}
	}

	tasks := make([]*domain.Task, 0, len(merged))
	for _, th := range merged {
		taskType := taskTypesByID[th.taskTypeID]

		// Surface only the templates that define this task type.
		var surfaced []string
		if onPage, ok := templatesByTitle[th.hit.Title]; ok {
			surfaced = intersect(taskType.Templates, onPage)
		}

		task, err := domain.NewTemplateBasedTask(taskType, th.hit.Title, surfaced)
		if err != nil {
			return nil, err
		}
		for _, topic := range topics {
			task.MatchedTopics = append(task.MatchedTopics, domain.TopicScore{
				TopicID: topic.ID,
				Score:   th.hit.Score,
			})
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// intersect returns the elements of a that also occur in b, preserving a's
// order.
func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := inB[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *SearchTaskSuggester) shuffle(tasks []*domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(tasks), func(i, j int) {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	})
}

// sortedKeys returns the map keys in sorted order; deterministic dispatch
// order keeps query logs and tests stable.
func sortedKeys(m map[string]*domain.TaskType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
