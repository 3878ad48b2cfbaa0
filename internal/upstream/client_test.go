package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed_service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(url string) *Client {
	return New(Config{BaseURL: url}, testLogger())
}

func TestQueryPosts_SendsQueryAndCorrelation(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	want := []domain.Post{
		domain.NewPost("a", "alice", "hello", at, true),
		domain.NewPost("b", "bob", "world", at.Add(time.Minute), false),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/posts", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "a,b", q.Get("ids"))
		assert.Equal(t, "", q.Get("author"))
		assert.Equal(t, "", q.Get("status"))
		assert.True(t, q.Has("author"))
		assert.True(t, q.Has("status"))
		assert.Equal(t, "1", q.Get("index"))
		assert.Equal(t, "2", q.Get("size"))
		assert.Equal(t, "corr-1", r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	posts, err := newClient(server.URL).QueryPosts(context.Background(), Query{
		IDs: "a,b", Index: 1, Size: 2, CorrelationID: "corr-1",
	})

	require.NoError(t, err)
	assert.Equal(t, want, posts)
}

func TestQueryPosts_BadRequestIsInvalidArgument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newClient(server.URL).QueryPosts(context.Background(), Query{IDs: "a", Size: 1})

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestQueryPosts_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newClient(server.URL).QueryPosts(context.Background(), Query{IDs: "a", Size: 1})

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestQueryPosts_ConnectionRefusedIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newClient(url).QueryPosts(context.Background(), Query{IDs: "a", Size: 1})

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestQueryPosts_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	_, err := newClient(server.URL).QueryPosts(context.Background(), Query{IDs: "a", Size: 1})

	assert.Error(t, err)
}

func TestQueryPosts_HonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newClient(server.URL).QueryPosts(ctx, Query{IDs: "a", Size: 1})

	assert.ErrorIs(t, err, ErrUnavailable)
}
