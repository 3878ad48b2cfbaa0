package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feed_service/internal/config"
	"feed_service/internal/domain"
	"feed_service/internal/resilience"
)

// Service is the durable tier of the feed. It keeps one reference per
// ingested post and pages through them newest first.
type Service struct {
	store     Store
	txManager TransactionManager
	logger    *slog.Logger

	persist resilience.Operation[domain.ArchiveEntry, int64]
}

func NewService(store Store, txManager TransactionManager, logger *slog.Logger, cfg config.ArchiveConfig) *Service {
	s := &Service{
		store:     store,
		txManager: txManager,
		logger:    logger,
	}

	s.persist = resilience.Wrap(s.insert, resilience.Policy{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retry.MaxRetries,
		NewBackOff: resilience.FibonacciBackOffFactory(cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff),
		Abort: func(err error) bool {
			return errors.Is(err, domain.ErrValidation)
		},
		OnRetry: func(err error, wait time.Duration) {
			s.logger.Warn("archiving post failed, retrying", "error", err, "backoff", wait)
		},
	}, nil)

	return s
}

// ArchivePost stores a reference to post. Invalid posts fail with
// domain.ErrValidation and are not retried.
func (s *Service) ArchivePost(ctx context.Context, post domain.Post) error {
	if err := post.Validate(); err != nil {
		return fmt.Errorf("archive post %s: %w", post.ID, err)
	}
	entry := domain.NewArchiveEntry(post)

	id, err := s.persist(ctx, entry)
	if err != nil {
		return fmt.Errorf("archive post %s: %w", post.ID, err)
	}

	s.logger.Debug("post archived", "post_id", post.ID, "archive_id", id)
	return nil
}

// GetArchivedPostIds returns the ids on the requested page, newest first.
func (s *Service) GetArchivedPostIds(ctx context.Context, pageIndex, pageSize int) ([]string, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page should be positive and size greater than zero (index=%d, size=%d)",
			domain.ErrInvalidArgument, pageIndex, pageSize)
	}

	ids, err := s.store.ListPostIDs(ctx, pageIndex, pageSize)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) insert(ctx context.Context, entry domain.ArchiveEntry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.store.Insert(ctx, &entry)
		return err
	})
	return id, err
}
