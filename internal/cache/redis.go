package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"feed_service/internal/domain"
	"feed_service/internal/resilience"
)

const appendDependency = "feed-cache-append"

// Config holds the cache tier settings.
type Config struct {
	Enabled    bool
	Key        string
	MaxEntries int64
	Timeout    time.Duration
	Bulkhead   int64
	Breaker    resilience.BreakerSettings
}

// RedisCache keeps the newest MaxEntries posts in a single redis list, newest
// at the head. The list is trimmed in the background after every push, so
// under concurrent appends it may briefly exceed its bound.
type RedisCache struct {
	store  ListStore
	cfg    Config
	tasks  Submitter
	logger *slog.Logger

	push   resilience.Operation[string, int64]
	lrange resilience.Operation[int64, []string]
}

func NewRedisCache(store ListStore, cfg Config, registry *resilience.Registry, tasks Submitter, logger *slog.Logger) *RedisCache {
	c := &RedisCache{
		store:  store,
		cfg:    cfg,
		tasks:  tasks,
		logger: logger.With("cache_key", cfg.Key),
	}

	c.push = resilience.Wrap(c.doPush, resilience.Policy{
		Timeout:  cfg.Timeout,
		Breaker:  registry.Breaker(appendDependency, cfg.Breaker),
		Bulkhead: registry.Bulkhead(appendDependency, cfg.Bulkhead),
	}, c.pushFallback)

	c.lrange = resilience.Wrap(c.doRange, resilience.Policy{
		Timeout: cfg.Timeout,
	}, c.rangeFallback)

	return c
}

// Append pushes post to the head of the list and schedules a trim whatever
// the push outcome. It reports whether the push landed; trim completion is not
// awaited. With caching
// disabled it succeeds without touching the store.
func (c *RedisCache) Append(ctx context.Context, post domain.Post) bool {
	if !c.cfg.Enabled {
		c.logger.Debug("caching is disabled, ignoring append", "post_id", post.ID)
		return true
	}

	value, err := json.Marshal(post)
	if err != nil {
		c.logger.Error("unable to encode post for caching", "post_id", post.ID, "error", err)
		return false
	}

	length, _ := c.push(ctx, string(value))
	c.scheduleTrim()

	return length > 0
}

// List returns up to size posts from the head of the list, newest first,
// without removing them. Any undecodable entry degrades the read to empty.
func (c *RedisCache) List(ctx context.Context, size int64) ([]domain.Post, error) {
	if size < 1 || size > c.cfg.MaxEntries {
		return nil, fmt.Errorf("%w: incorrect list range, requested %d, max allowed %d",
			domain.ErrInvalidArgument, size, c.cfg.MaxEntries)
	}

	if !c.cfg.Enabled {
		return []domain.Post{}, nil
	}

	raw, _ := c.lrange(ctx, size)

	posts := make([]domain.Post, 0, len(raw))
	for _, entry := range raw {
		var post domain.Post
		if err := json.Unmarshal([]byte(entry), &post); err != nil {
			c.logger.Error("unable to decode cached post", "error", err)
			return []domain.Post{}, nil
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// Trim drops every entry past MaxEntries.
func (c *RedisCache) Trim(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	if err := c.store.LTrim(ctx, c.cfg.Key, 0, c.cfg.MaxEntries-1).Err(); err != nil {
		return fmt.Errorf("trim %s: %w", c.cfg.Key, err)
	}
	return nil
}

func (c *RedisCache) scheduleTrim() {
	submitted := c.tasks.Submit("cache-trim", func(ctx context.Context) error {
		if err := c.Trim(ctx); err != nil {
			c.logger.Error("trim of cache failed", "error", err)
			return nil
		}
		c.logger.Debug("trim of cache finished")
		return nil
	})
	if !submitted {
		c.logger.Warn("trim of cache not scheduled, list may exceed its bound until next trim")
	}
}

func (c *RedisCache) doPush(ctx context.Context, value string) (int64, error) {
	return c.store.LPush(ctx, c.cfg.Key, value).Result()
}

func (c *RedisCache) pushFallback(_ context.Context, _ string, err error) (int64, error) {
	c.logger.Warn("fallback active while appending to cache", "error", err)
	return 0, nil
}

func (c *RedisCache) doRange(ctx context.Context, size int64) ([]string, error) {
	return c.store.LRange(ctx, c.cfg.Key, 0, size-1).Result()
}

func (c *RedisCache) rangeFallback(_ context.Context, size int64, err error) ([]string, error) {
	c.logger.Warn("fallback active while listing cache", "size", size, "error", err)
	return nil, nil
}
