package suggester

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
)

// StoreDirective tells the cache what to do with the value a compute
// callback returned. This replaces out-parameter TTL mutation with an
// explicit tri-state result.
type StoreDirective int

const (
	// StoreValue writes the computed value to the cache with the TTL the
	// caller supplied.
	StoreValue StoreDirective = iota

	// SkipStore returns the computed value to the caller without touching
	// the cache. Mandatory on filter-compatible hits: without it every
	// read would trigger a redundant cache write.
	SkipStore

	// UseStale discards the computed value and returns whatever the cache
	// already held.
	UseStale
)

// CachedSuggestion is the document stored per user: either a task set or
// the error the wrapped suggester produced. Callers must check Err before
// treating the entry as a valid task set.
type CachedSuggestion struct {
	TaskSet  *domain.TaskSet `json:"taskSet,omitempty"`
	ErrorMsg string          `json:"error,omitempty"`
}

// Err returns the cached error, or nil for a valid task-set entry.
func (c *CachedSuggestion) Err() error {
	if c == nil || c.ErrorMsg == "" {
		return nil
	}
	return errors.New(c.ErrorMsg)
}

// ComputeResult is what a compute callback hands back to the cache.
type ComputeResult struct {
	Value     *CachedSuggestion
	Directive StoreDirective
}

// ComputeFn produces a value on cache access. It receives the currently
// cached entry (nil on a miss) and decides, via the directive, whether its
// result should be written back.
type ComputeFn func(ctx context.Context, cached *CachedSuggestion) (ComputeResult, error)

// SuggestionCache is the distributed cache holding one CachedSuggestion per
// user, shared across all processes. Concurrent writers race last-write-wins,
// which is acceptable: entries are idempotent top-K candidate sets, not
// authoritative state.
type SuggestionCache interface {
	// GetWithSetCallback looks up key, invokes compute with the cached
	// entry (nil on miss), applies the returned directive and returns the
	// resulting value.
	GetWithSetCallback(ctx context.Context, key string, ttl time.Duration, compute ComputeFn) (*CachedSuggestion, error)

	// Delete drops the entry for key.
	Delete(ctx context.Context, key string) error
}

// CacheDecorator wraps a TaskSuggester with a per-user cache. The cache key
// is the user ID alone, not the filters: a filter change forces a full
// refetch, while repeated requests with the same filter reuse one underlying
// fetch and still appear freshly randomized on every call.
type CacheDecorator struct {
	inner        TaskSuggester
	cache        SuggestionCache
	ttl          time.Duration
	defaultLimit int
	logger       *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Ensure CacheDecorator implements TaskSuggester
var _ TaskSuggester = (*CacheDecorator)(nil)

// NewCacheDecorator creates a CacheDecorator around inner. defaultLimit is
// the (large) page size used when refreshing a user's candidate pool; ttl
// should span multiple days. If logger is nil, a default logger will be used.
func NewCacheDecorator(
	inner TaskSuggester,
	cache SuggestionCache,
	ttl time.Duration,
	defaultLimit int,
	rng *rand.Rand,
	log *slog.Logger,
) *CacheDecorator {
	if inner == nil {
		panic("inner suggester cannot be nil")
	}
	if cache == nil {
		panic("cache cannot be nil")
	}
	if rng == nil {
		panic("rng cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &CacheDecorator{
		inner:        inner,
		cache:        cache,
		ttl:          ttl,
		defaultLimit: defaultLimit,
		logger:       log.With(slog.String("component", "suggestion_cache")),
		rng:          rng,
	}
}

// CacheKey returns the cache key for a user's suggestion entry.
func CacheKey(userID int64) string {
	return "newcomer-tasks:suggestions:" + strconv.FormatInt(userID, 10)
}

// Suggest implements TaskSuggester.
func (d *CacheDecorator) Suggest(ctx context.Context, req Request) (*domain.TaskSet, error) {
	// Debug requests and oversized pages would poison or be poisoned by
	// the cached pool; go straight to the backend.
	if req.Debug || req.Limit > d.defaultLimit {
		return d.inner.Suggest(ctx, req)
	}

	log := logger.FromContextOrDefault(ctx, d.logger)
	filters := req.Filters()

	entry, err := d.cache.GetWithSetCallback(ctx, CacheKey(req.UserID), d.ttl,
		func(ctx context.Context, cached *CachedSuggestion) (ComputeResult, error) {
			if cached != nil && cached.Err() == nil &&
				cached.TaskSet != nil && cached.TaskSet.Filters.Equal(filters) {
				// Filter-compatible hit: the cached pool is reused as-is.
				// SkipStore keeps the read path from rewriting the entry
				// on every call.
				return ComputeResult{Value: cached, Directive: SkipStore}, nil
			}

			if cached != nil && cached.Err() != nil {
				// A cached backend error is served as-is until it expires
				// or is invalidated; refetching on every read would hammer
				// a failing backend.
				return ComputeResult{Value: cached, Directive: SkipStore}, nil
			}

			log.Debug("refreshing cached suggestion pool",
				slog.Int64("user_id", req.UserID),
				slog.Int("fetch_limit", d.defaultLimit))

			fresh := req
			fresh.Limit = d.defaultLimit
			fresh.Offset = 0

			taskSet, err := d.inner.Suggest(ctx, fresh)
			if err != nil {
				// Cache the error value itself so every process sees the
				// same failure until the entry expires.
				return ComputeResult{
					Value:     &CachedSuggestion{ErrorMsg: err.Error()},
					Directive: StoreValue,
				}, nil
			}

			// Shuffle once before storing; per-request randomization
			// happens on the read path below.
			d.shuffleTaskSet(taskSet)
			return ComputeResult{
				Value:     &CachedSuggestion{TaskSet: taskSet},
				Directive: StoreValue,
			}, nil
		})
	if err != nil {
		return nil, err
	}

	if cachedErr := entry.Err(); cachedErr != nil {
		return nil, cachedErr
	}

	// Serve a freshly shuffled, truncated copy; the cached entry keeps the
	// full pool and its original order.
	result := d.copyTaskSet(entry.TaskSet)
	d.shuffleTaskSet(result)
	result.Truncate(req.Limit)
	return result, nil
}

// Invalidate drops the user's cached suggestion pool, forcing the next
// Suggest to refetch.
func (d *CacheDecorator) Invalidate(ctx context.Context, userID int64) error {
	return d.cache.Delete(ctx, CacheKey(userID))
}

func (d *CacheDecorator) shuffleTaskSet(set *domain.TaskSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set.Shuffle(d.rng)
}

func (d *CacheDecorator) copyTaskSet(set *domain.TaskSet) *domain.TaskSet {
	tasks := make([]*domain.Task, len(set.Tasks))
	copy(tasks, set.Tasks)
	dup := *set
	dup.Tasks = tasks
	return &dup
}
