package ingest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feed_service/internal/domain"
	"feed_service/internal/worker"
)

type Archiver interface {
	ArchivePost(ctx context.Context, post domain.Post) error
}

type Cache interface {
	Append(ctx context.Context, post domain.Post) bool
}

type Submitter interface {
	Submit(name string, task worker.Task) bool
}

type MessageHandler interface {
	Handle(ctx context.Context, headers map[string]any, body []byte) (domain.IngestOutcome, error)
}
