package httpserver

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feed_service/internal/domain"
)

type FeedReader interface {
	GetFeed(ctx context.Context, req domain.PageRequest) ([]domain.Post, error)
}
