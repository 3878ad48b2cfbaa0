package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"feed_service/internal/domain"
)

type HandlerConfig struct {
	CorrelationKey string
	CacheOnIngest  bool
}

// Handler takes one inbound post event through header, correlation and
// payload checks into the archive. Only a failed archival is returned as an
// error; every other outcome is final.
type Handler struct {
	archive Archiver
	cache   Cache
	tasks   Submitter
	cfg     HandlerConfig
	logger  *slog.Logger
}

func NewHandler(archive Archiver, cache Cache, tasks Submitter, logger *slog.Logger, cfg HandlerConfig) *Handler {
	return &Handler{
		archive: archive,
		cache:   cache,
		tasks:   tasks,
		cfg:     cfg,
		logger:  logger,
	}
}

func (h *Handler) Handle(ctx context.Context, headers map[string]any, body []byte) (domain.IngestOutcome, error) {
	raw, ok := headers[h.cfg.CorrelationKey]
	if !ok {
		h.logger.Warn("ignoring post event without correlation header", "header", h.cfg.CorrelationKey)
		return domain.OutcomeIgnored, nil
	}

	correlationID := headerString(raw)
	if strings.TrimSpace(correlationID) == "" {
		h.logger.Warn("ignoring post event with blank correlation id")
		return domain.OutcomeIgnored, nil
	}
	logger := h.logger.With("correlation_id", correlationID)

	event, err := decodeEvent(body)
	if err != nil {
		logger.Warn("ignoring undecodable post event", "error", err)
		return domain.OutcomeIgnored, nil
	}
	if event == nil {
		logger.Warn("ignoring post event without payload")
		return domain.OutcomeIgnored, nil
	}

	post := event.Post()
	if err := h.archive.ArchivePost(ctx, post); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			logger.Error("rejecting invalid post event", "post_id", post.ID, "error", err)
			return domain.OutcomeRejected, nil
		}
		logger.Error("unable to archive post", "post_id", post.ID, "error", err)
		return domain.OutcomeIgnored, fmt.Errorf("archive post %s: %w", post.ID, err)
	}

	logger.Info("post archived", "post_id", post.ID)

	if h.cfg.CacheOnIngest && h.cache != nil {
		h.appendToCache(post, correlationID)
	}

	return domain.OutcomeArchived, nil
}

func (h *Handler) appendToCache(post domain.Post, correlationID string) {
	submitted := h.tasks.Submit("cache-on-ingest", func(ctx context.Context) error {
		if !h.cache.Append(ctx, post) {
			return fmt.Errorf("append of post %s to cache failed (correlation_id=%s)", post.ID, correlationID)
		}
		return nil
	})
	if !submitted {
		h.logger.Warn("cache append on ingest dropped", "post_id", post.ID, "correlation_id", correlationID)
	}
}

func headerString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func decodeEvent(body []byte) (*domain.PostEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var event domain.PostEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
