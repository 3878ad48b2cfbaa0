package archive

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feed_service/internal/domain"
)

type Store interface {
	Insert(ctx context.Context, entry *domain.ArchiveEntry) (int64, error)
	ListPostIDs(ctx context.Context, pageIndex, pageSize int) ([]string, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
