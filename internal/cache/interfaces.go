package cache

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/redis/go-redis/v9"

	"feed_service/internal/worker"
)

// ListStore is the subset of the redis client used by the cache. *redis.Client
// satisfies it.
type ListStore interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Submitter runs detached background tasks.
type Submitter interface {
	Submit(name string, task worker.Task) bool
}
