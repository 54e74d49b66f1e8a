package suggester

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillwiki/growthtasks/internal/domain"
)

// memoryCache is an in-process SuggestionCache that counts writes so tests
// can assert the SkipStore contract.
type memoryCache struct {
	entries map[string]*CachedSuggestion
	writes  int
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*CachedSuggestion)}
}

func (c *memoryCache) GetWithSetCallback(
	ctx context.Context,
	key string,
	_ time.Duration,
	compute ComputeFn,
) (*CachedSuggestion, error) {
	cached := c.entries[key]
	result, err := compute(ctx, cached)
	if err != nil {
		return nil, err
	}
	switch result.Directive {
	case StoreValue:
		c.entries[key] = result.Value
		c.writes++
		return result.Value, nil
	case SkipStore:
		return result.Value, nil
	case UseStale:
		return cached, nil
	}
	return result.Value, nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	c.deletes++
	return nil
}

// countingSuggester serves a fixed pool and counts fetches.
type countingSuggester struct {
	pool    []*domain.Task
	total   int
	err     error
	fetches int
}

func (s *countingSuggester) Suggest(_ context.Context, req Request) (*domain.TaskSet, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	tasks := make([]*domain.Task, len(s.pool))
	copy(tasks, s.pool)
	return domain.NewTaskSet(tasks, s.total, 0, req.Filters())
}

func poolOf(t *testing.T, n int) []*domain.Task {
	t.Helper()
	tt, err := domain.NewTaskType("copyedit", "", "")
	require.NoError(t, err)
	tasks := make([]*domain.Task, 0, n)
	for i := 0; i < n; i++ {
		task, err := domain.NewTask(tt, string(rune('A'+i)))
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	return tasks
}

const testDefaultLimit = 50

func newDecorator(inner TaskSuggester, cache SuggestionCache) *CacheDecorator {
	return NewCacheDecorator(inner, cache, 72*time.Hour, testDefaultLimit,
		rand.New(rand.NewSource(99)), nil)
}

func TestNewCacheDecoratorNilGuards(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewCacheDecorator(nil, newMemoryCache(), time.Hour, 10, rand.New(rand.NewSource(1)), nil)
	})
	assert.Panics(t, func() {
		NewCacheDecorator(&countingSuggester{}, nil, time.Hour, 10, rand.New(rand.NewSource(1)), nil)
	})
	assert.Panics(t, func() {
		NewCacheDecorator(&countingSuggester{}, newMemoryCache(), time.Hour, 10, nil, nil)
	})
}

func TestCacheDecorator(t *testing.T) {
	t.Parallel()

	t.Run("same filters reuse one underlying fetch", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 20), total: 20}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		req := Request{UserID: 7, TaskTypes: []string{"copyedit"}, Limit: 5}

		first, err := dec.Suggest(context.Background(), req)
		require.NoError(t, err)
		second, err := dec.Suggest(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, 1, inner.fetches, "second call must be served from cache")
		assert.Equal(t, 5, first.Count())
		assert.Equal(t, 5, second.Count())
		assert.Equal(t, 20, first.TotalCount)
		assert.Equal(t, 20, second.TotalCount, "both draws come from the same pool")
	})

	t.Run("filter-compatible hit does not rewrite the cache", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 20), total: 20}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		req := Request{UserID: 7, Limit: 5}

		_, err := dec.Suggest(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, 1, cache.writes)

		_, err = dec.Suggest(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 1, cache.writes, "cache hit must not trigger a write")
	})

	t.Run("filter change triggers exactly one fresh fetch", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 20), total: 20}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		_, err := dec.Suggest(context.Background(), Request{UserID: 7, Topics: []string{"science"}, Limit: 5})
		require.NoError(t, err)
		require.Equal(t, 1, inner.fetches)

		_, err = dec.Suggest(context.Background(), Request{UserID: 7, Topics: []string{"art"}, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, 2, inner.fetches, "topic change invalidates the cached pool")

		_, err = dec.Suggest(context.Background(), Request{UserID: 7, Topics: []string{"art"}, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, 2, inner.fetches, "repeated filter is served from cache again")
	})

	t.Run("pool is fetched at the default limit", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 20), total: 20}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		set, err := dec.Suggest(context.Background(), Request{UserID: 7, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, set.Count(), "caller gets the requested page size")

		entry := cache.entries[CacheKey(7)]
		require.NotNil(t, entry)
		require.NotNil(t, entry.TaskSet)
		assert.Equal(t, 20, entry.TaskSet.Count(), "cache keeps the full pool")
	})

	t.Run("debug bypasses the cache", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 5), total: 5}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		_, err := dec.Suggest(context.Background(), Request{UserID: 7, Limit: 3, Debug: true})
		require.NoError(t, err)
		assert.Zero(t, cache.writes)
		assert.Empty(t, cache.entries)
	})

	t.Run("oversized limit bypasses the cache", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 5), total: 5}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		_, err := dec.Suggest(context.Background(), Request{UserID: 7, Limit: testDefaultLimit + 1})
		require.NoError(t, err)
		assert.Empty(t, cache.entries)
	})

	t.Run("backend errors are cached as values", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{err: errors.New("search backend down")}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		_, err := dec.Suggest(context.Background(), Request{UserID: 7, Limit: 5})
		require.Error(t, err)
		require.Equal(t, 1, inner.fetches)

		_, err = dec.Suggest(context.Background(), Request{UserID: 7, Limit: 5})
		require.Error(t, err)
		assert.Equal(t, 1, inner.fetches, "the cached error shields the backend")
	})

	t.Run("invalidate forces a refetch", func(t *testing.T) {
		t.Parallel()
		inner := &countingSuggester{pool: poolOf(t, 10), total: 10}
		cache := newMemoryCache()
		dec := newDecorator(inner, cache)

		req := Request{UserID: 7, Limit: 5}
		_, err := dec.Suggest(context.Background(), req)
		require.NoError(t, err)

		require.NoError(t, dec.Invalidate(context.Background(), 7))

		_, err = dec.Suggest(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.fetches)
	})
}

// lockedBackend is safe for concurrent Search calls.
type lockedBackend struct {
	mu     sync.Mutex
	result *SearchResult
}

func (b *lockedBackend) Search(_ context.Context, _ string, _, _ int, _ bool) (*SearchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hits := make([]SearchHit, len(b.result.Hits))
	copy(hits, b.result.Hits)
	return &SearchResult{Hits: hits, TotalHits: b.result.TotalHits}, nil
}

// The cache-hit reshuffle and the search suggester's topic shuffle run on
// different goroutines in the server; each layer must own its rand.Rand,
// guarded by its own lock. Run under -race.
func TestSuggestStack_ConcurrentShuffles(t *testing.T) {
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
	backend := &lockedBackend{
		result: &SearchResult{Hits: hitsFor("A", "B", "C", "D", "E", "F"), TotalHits: 6},
	}

	// Independent rand sources per layer, mirroring the server wiring.
	inner := NewSearchTaskSuggester(backend, cfg, nil, rand.New(rand.NewSource(7)), nil)
	dec := NewCacheDecorator(inner, newMemoryCache(), 72*time.Hour, testDefaultLimit,
		rand.New(rand.NewSource(99)), nil)

	req := Request{UserID: 1, Topics: []string{"science"}, Limit: 5}

	// Warm the pool sequentially; the concurrent phase below only reads it.
	_, err := dec.Suggest(context.Background(), req)
	require.NoError(t, err)

	const iterations = 20
	errs := make(chan error, 2*iterations)
	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		wg.Add(2)
		go func() {
			// Cache hit: reshuffles through the decorator's rand.
			defer wg.Done()
			_, err := dec.Suggest(context.Background(), req)
			errs <- err
		}()
		go func() {
			// Debug bypasses the cache: shuffles through the inner rand.
			defer wg.Done()
			debugReq := req
			debugReq.Debug = true
			_, err := dec.Suggest(context.Background(), debugReq)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
