package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"feed_service/internal/domain"
)

const postsPath = "/api/posts"

// ErrUnavailable marks failures worth retrying: transport errors and
// non-client HTTP statuses.
var ErrUnavailable = errors.New("post service unavailable")

type Config struct {
	BaseURL           string
	Timeout           time.Duration
	CorrelationHeader string
}

// Client resolves post ids into full posts through the post service.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	correlationHeader string
	logger            *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	header := cfg.CorrelationHeader
	if header == "" {
		header = "X-Request-ID"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:           cfg.BaseURL,
		correlationHeader: header,
		logger:            logger.With("dependency", "post-service"),
	}
}

// Query describes one call to the post service. Author and Status are
// optional filters.
type Query struct {
	IDs           string
	Author        string
	Status        string
	Index         int
	Size          int
	CorrelationID string
}

// QueryPosts returns the posts matching q in whatever order the service
// chooses. A 400 response maps to domain.ErrInvalidArgument.
func (c *Client) QueryPosts(ctx context.Context, q Query) ([]domain.Post, error) {
	params := url.Values{}
	params.Set("ids", q.IDs)
	params.Set("author", q.Author)
	params.Set("status", q.Status)
	params.Set("index", strconv.Itoa(q.Index))
	params.Set("size", strconv.Itoa(q.Size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+postsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "FeedService/1.0")
	if q.CorrelationID != "" {
		req.Header.Set(c.correlationHeader, q.CorrelationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: post service responded with HTTP 400", domain.ErrInvalidArgument)
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: unexpected status: %d", ErrUnavailable, resp.StatusCode)
	}

	var posts []domain.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	for i := range posts {
		posts[i] = posts[i].Normalize()
	}

	c.logger.Debug("resolved posts", "requested", q.IDs, "returned", len(posts), "correlation_id", q.CorrelationID)
	return posts, nil
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
}
