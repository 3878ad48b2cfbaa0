package feed

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feed_service/internal/domain"
	"feed_service/internal/upstream"
	"feed_service/internal/worker"
)

type Cache interface {
	List(ctx context.Context, size int64) ([]domain.Post, error)
	Append(ctx context.Context, post domain.Post) bool
}

type Archive interface {
	GetArchivedPostIds(ctx context.Context, pageIndex, pageSize int) ([]string, error)
}

type PostSource interface {
	QueryPosts(ctx context.Context, q upstream.Query) ([]domain.Post, error)
}

type Submitter interface {
	Submit(name string, task worker.Task) bool
}
