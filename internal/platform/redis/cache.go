// Package redis provides the go-redis backed implementation of the
// suggestion cache shared by all server processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/quillwiki/growthtasks/internal/config"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/suggester"
)

// NewClient creates a redis client from the cache configuration and
// verifies connectivity with a ping.
func NewClient(ctx context.Context, cfg config.CacheConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// SuggestionCache implements suggester.SuggestionCache on top of a redis
// client. Entries are stored as JSON documents. Concurrent writers race
// last-write-wins, which matches the interface contract.
type SuggestionCache struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewSuggestionCache creates a SuggestionCache. If logger is nil, a default
// logger will be used.
func NewSuggestionCache(client *goredis.Client, log *slog.Logger) *SuggestionCache {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SuggestionCache{
		client: client,
		logger: log.With(slog.String("component", "redis_suggestion_cache")),
	}
}

// Ensure SuggestionCache implements the cache interface
var _ suggester.SuggestionCache = (*SuggestionCache)(nil)

// GetWithSetCallback implements suggester.SuggestionCache.
func (c *SuggestionCache) GetWithSetCallback(
	ctx context.Context,
	key string,
	ttl time.Duration,
	compute suggester.ComputeFn,
) (*suggester.CachedSuggestion, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	cached, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}

	result, err := compute(ctx, cached)
	if err != nil {
		return nil, err
	}

	switch result.Directive {
	case suggester.StoreValue:
		if err := c.set(ctx, key, result.Value, ttl); err != nil {
			// A failed write degrades to cache-miss behavior on the next
			// read; the computed value is still valid for this caller.
			log.Warn("failed to write suggestion cache entry",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return result.Value, nil

	case suggester.UseStale:
		if cached != nil {
			return cached, nil
		}
		return result.Value, nil

	case suggester.SkipStore:
		return result.Value, nil

	default:
		return nil, fmt.Errorf("unknown store directive %d", result.Directive)
	}
}

// Delete implements suggester.SuggestionCache.
func (c *SuggestionCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

func (c *SuggestionCache) get(ctx context.Context, key string) (*suggester.CachedSuggestion, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	var entry suggester.CachedSuggestion
	if err := json.Unmarshal(raw, &entry); err != nil {
		// An undecodable entry, e.g. written by an older release, is
		// treated as a miss and will be overwritten.
		log.Warn("discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, nil
	}

	return &entry, nil
}

func (c *SuggestionCache) set(
	ctx context.Context,
	key string,
	entry *suggester.CachedSuggestion,
	ttl time.Duration,
) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}
