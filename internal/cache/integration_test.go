//go:build integration

package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"feed_service/internal/domain"
	"feed_service/internal/resilience"
	"feed_service/internal/worker"
)

type RedisIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcredis.RedisContainer
	client    *redis.Client
	logger    *slog.Logger
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	container, err := tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)
	s.client = redis.NewClient(opts)
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisIntegrationSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(s.ctx).Err())
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) newCache(pool *worker.Pool) *RedisCache {
	return NewRedisCache(s.client, Config{
		Enabled:    true,
		Key:        testKey,
		MaxEntries: 5,
		Timeout:    time.Second,
		Bulkhead:   50,
		Breaker:    resilience.BreakerSettings{VolumeThreshold: 100, FailureRatio: 0.9, Delay: time.Second},
	}, resilience.NewRegistry(s.logger), pool, s.logger)
}

func (s *RedisIntegrationSuite) TestAppend_KeepsNewestEntriesMostRecentFirst() {
	pool := worker.NewPool(1, 64, time.Second, s.logger)
	c := s.newCache(pool)
	base := time.Now()

	for i := 1; i <= 12; i++ {
		post := domain.NewPost(fmt.Sprintf("P%d", i), "alice", "msg", base.Add(time.Duration(i)*time.Second), true)
		s.True(c.Append(s.ctx, post))
	}
	s.Require().NoError(pool.Close(s.ctx))

	posts, err := c.List(s.ctx, 5)
	s.Require().NoError(err)
	s.Require().Len(posts, 5)
	for i, p := range posts {
		s.Equal(fmt.Sprintf("P%d", 12-i), p.ID)
	}

	length, err := s.client.LLen(s.ctx, testKey).Result()
	s.NoError(err)
	s.Equal(int64(5), length)
}

func (s *RedisIntegrationSuite) TestAppend_ConcurrentBurstSettlesAfterTrim() {
	pool := worker.NewPool(4, 256, time.Second, s.logger)
	c := s.newCache(pool)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Append(s.ctx, domain.NewPost(fmt.Sprintf("C%d", i), "alice", "msg", time.Now(), true))
		}(i)
	}
	wg.Wait()
	s.Require().NoError(pool.Close(s.ctx))
	s.Require().NoError(c.Trim(s.ctx))

	length, err := s.client.LLen(s.ctx, testKey).Result()
	s.NoError(err)
	s.Equal(int64(5), length)
}
