package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"feed_service/internal/config"
	"feed_service/internal/domain"
	"feed_service/internal/resilience"
	"feed_service/internal/upstream"
)

// UpstreamDependency names the breaker guarding the post service.
const UpstreamDependency = "feed-from-post-service"

type Config struct {
	Timeout time.Duration
	Retry   config.RetryConfig
	Breaker resilience.BreakerSettings
}

// Service assembles feed pages from the cache, the archive and the post
// service. It owns no state of its own.
type Service struct {
	cache   Cache
	archive Archive
	tasks   Submitter
	logger  *slog.Logger

	resolve resilience.Operation[upstream.Query, []domain.Post]
}

func NewService(
	cache Cache,
	archive Archive,
	posts PostSource,
	tasks Submitter,
	registry *resilience.Registry,
	logger *slog.Logger,
	cfg Config,
) *Service {
	s := &Service{
		cache:   cache,
		archive: archive,
		tasks:   tasks,
		logger:  logger,
	}

	breaker := cfg.Breaker
	breaker.SkipOn = isInvalidArgument

	s.resolve = resilience.Wrap(posts.QueryPosts, resilience.Policy{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retry.MaxRetries,
		NewBackOff: resilience.ExponentialBackOff(cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff),
		Abort:      isInvalidArgument,
		Breaker:    registry.Breaker(UpstreamDependency, breaker),
	}, s.resolveFallback)

	return s
}

// GetFeed returns one page of the feed, newest first. The first page is
// served from the cache when it holds anything; a miss is answered from the
// archive and back-filled into the cache in the background.
func (s *Service) GetFeed(ctx context.Context, req domain.PageRequest) ([]domain.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.IsFirstPage() {
		return s.fromCache(ctx, req)
	}
	return s.fromArchive(ctx, req)
}

func (s *Service) fromCache(ctx context.Context, req domain.PageRequest) ([]domain.Post, error) {
	posts, err := s.cache.List(ctx, int64(req.Size))
	if err != nil {
		return nil, err
	}
	if len(posts) > 0 {
		return posts, nil
	}

	s.logger.Debug("feed cache miss, falling back to archive", "correlation_id", req.CorrelationID)

	posts, err = s.fromArchive(ctx, req.WithIndex(domain.FirstPage))
	if err != nil {
		return nil, err
	}

	s.backfill(posts, req.CorrelationID)
	return posts, nil
}

func (s *Service) fromArchive(ctx context.Context, req domain.PageRequest) ([]domain.Post, error) {
	ids, err := s.archive.GetArchivedPostIds(ctx, req.Index, req.Size)
	if err != nil {
		return nil, fmt.Errorf("get archived post ids: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Post{}, nil
	}

	posts, err := s.resolve(ctx, upstream.Query{
		IDs:           strings.Join(ids, ","),
		Index:         req.Index,
		Size:          req.Size,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	sorted := slices.Clone(posts)
	slices.SortStableFunc(sorted, func(a, b domain.Post) int {
		return cmp.Compare(b.CreationTime.UnixNano(), a.CreationTime.UnixNano())
	})
	return sorted, nil
}

// backfill appends every post to the cache on its own detached task. Failures
// are logged by the pool and never reach the reader.
func (s *Service) backfill(posts []domain.Post, correlationID string) {
	for _, post := range posts {
		submitted := s.tasks.Submit("cache-backfill", func(ctx context.Context) error {
			if !s.cache.Append(ctx, post) {
				return fmt.Errorf("back-fill of post %s into cache failed (correlation_id=%s)", post.ID, correlationID)
			}
			return nil
		})
		if !submitted {
			s.logger.Warn("cache back-fill dropped", "post_id", post.ID, "correlation_id", correlationID)
		}
	}
}

func (s *Service) resolveFallback(_ context.Context, q upstream.Query, err error) ([]domain.Post, error) {
	s.logger.Error("unable to request posts from post service, serving empty page",
		"ids", q.IDs,
		"index", q.Index,
		"correlation_id", q.CorrelationID,
		"error", err,
	)
	return []domain.Post{}, nil
}

func isInvalidArgument(err error) bool {
	return errors.Is(err, domain.ErrInvalidArgument)
}
