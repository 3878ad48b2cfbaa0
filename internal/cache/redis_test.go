package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feed_service/internal/cache/mocks"
	"feed_service/internal/domain"
	"feed_service/internal/resilience"
	"feed_service/internal/worker"
)

const testKey = "fdd-all"

type RedisCacheTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store *mocks.MockListStore
	tasks *mocks.MockSubmitter

	logger *slog.Logger
	cfg    Config
}

func (s *RedisCacheTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockListStore(s.ctrl)
	s.tasks = mocks.NewMockSubmitter(s.ctrl)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	s.cfg = Config{
		Enabled:    true,
		Key:        testKey,
		MaxEntries: 5,
		Timeout:    time.Second,
		Bulkhead:   10,
		Breaker: resilience.BreakerSettings{
			VolumeThreshold: 2,
			FailureRatio:    0.5,
			Delay:           time.Minute,
			Window:          time.Minute,
		},
	}
}

func (s *RedisCacheTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRedisCacheTestSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheTestSuite))
}

func (s *RedisCacheTestSuite) newCache() *RedisCache {
	return NewRedisCache(s.store, s.cfg, resilience.NewRegistry(s.logger), s.tasks, s.logger)
}

// runInline executes submitted tasks synchronously.
func (s *RedisCacheTestSuite) runInline() *gomock.Call {
	return s.tasks.EXPECT().Submit("cache-trim", gomock.Any()).DoAndReturn(
		func(_ string, task worker.Task) bool {
			_ = task(context.Background())
			return true
		},
	)
}

func samplePost(id string, at time.Time) domain.Post {
	return domain.NewPost(id, "alice", "message "+id, at, true)
}

func encode(s *RedisCacheTestSuite, p domain.Post) string {
	data, err := json.Marshal(p)
	s.Require().NoError(err)
	return string(data)
}

func (s *RedisCacheTestSuite) TestAppend_DisabledSucceedsWithoutStore() {
	s.cfg.Enabled = false
	c := s.newCache()

	s.True(c.Append(context.Background(), samplePost("p1", time.Now())))
}

func (s *RedisCacheTestSuite) TestAppend_PushesToFeedListAndTrims() {
	c := s.newCache()
	post := samplePost("p1", time.Now())

	s.store.EXPECT().LPush(gomock.Any(), testKey, encode(s, post)).Return(redis.NewIntResult(7, nil))
	s.runInline()
	s.store.EXPECT().LTrim(gomock.Any(), testKey, int64(0), int64(4)).Return(redis.NewStatusResult("OK", nil))

	s.True(c.Append(context.Background(), post))
}

func (s *RedisCacheTestSuite) TestAppend_TrimFailureDoesNotFailAppend() {
	c := s.newCache()

	s.store.EXPECT().LPush(gomock.Any(), testKey, gomock.Any()).Return(redis.NewIntResult(1, nil))
	s.runInline()
	s.store.EXPECT().LTrim(gomock.Any(), testKey, int64(0), int64(4)).Return(redis.NewStatusResult("", errors.New("connection reset")))

	s.True(c.Append(context.Background(), samplePost("p1", time.Now())))
}

func (s *RedisCacheTestSuite) TestAppend_UnscheduledTrimDoesNotFailAppend() {
	c := s.newCache()

	s.store.EXPECT().LPush(gomock.Any(), testKey, gomock.Any()).Return(redis.NewIntResult(1, nil))
	s.tasks.EXPECT().Submit("cache-trim", gomock.Any()).Return(false)

	s.True(c.Append(context.Background(), samplePost("p1", time.Now())))
}

func (s *RedisCacheTestSuite) TestAppend_PushFailureFallsBackToFalse() {
	c := s.newCache()

	s.store.EXPECT().LPush(gomock.Any(), testKey, gomock.Any()).Return(redis.NewIntResult(0, errors.New("redis down")))
	s.tasks.EXPECT().Submit("cache-trim", gomock.Any()).Return(true)

	s.False(c.Append(context.Background(), samplePost("p1", time.Now())))
}

func (s *RedisCacheTestSuite) TestAppend_ZeroLengthReportsFalse() {
	c := s.newCache()

	s.store.EXPECT().LPush(gomock.Any(), testKey, gomock.Any()).Return(redis.NewIntResult(0, nil))
	s.tasks.EXPECT().Submit("cache-trim", gomock.Any()).Return(true)

	s.False(c.Append(context.Background(), samplePost("p1", time.Now())))
}

func (s *RedisCacheTestSuite) TestAppend_BreakerOpensAfterRepeatedFailures() {
	c := s.newCache()

	s.store.EXPECT().LPush(gomock.Any(), testKey, gomock.Any()).
		Return(redis.NewIntResult(0, errors.New("redis down"))).Times(2)
	s.tasks.EXPECT().Submit("cache-trim", gomock.Any()).Return(true).Times(4)

	for i := 0; i < 4; i++ {
		s.False(c.Append(context.Background(), samplePost("p1", time.Now())))
	}
}

func (s *RedisCacheTestSuite) TestList_RejectsSizeAboveMax() {
	c := s.newCache()

	posts, err := c.List(context.Background(), 6)

	s.ErrorIs(err, domain.ErrInvalidArgument)
	s.Nil(posts)
}

func (s *RedisCacheTestSuite) TestList_RejectsNonPositiveSize() {
	c := s.newCache()

	_, err := c.List(context.Background(), 0)

	s.ErrorIs(err, domain.ErrInvalidArgument)
}

func (s *RedisCacheTestSuite) TestList_DisabledReturnsEmpty() {
	s.cfg.Enabled = false
	c := s.newCache()

	posts, err := c.List(context.Background(), 5)

	s.NoError(err)
	s.Empty(posts)
}

func (s *RedisCacheTestSuite) TestList_ReturnsHeadOfList() {
	c := s.newCache()
	now := time.Now()
	p3 := samplePost("p3", now)
	p2 := samplePost("p2", now.Add(-time.Minute))
	p1 := samplePost("p1", now.Add(-2*time.Minute))

	s.store.EXPECT().LRange(gomock.Any(), testKey, int64(0), int64(2)).
		Return(redis.NewStringSliceResult([]string{encode(s, p3), encode(s, p2), encode(s, p1)}, nil))

	posts, err := c.List(context.Background(), 3)

	s.NoError(err)
	s.Equal([]domain.Post{p3, p2, p1}, posts)
}

func (s *RedisCacheTestSuite) TestList_UndecodableEntryDegradesToEmpty() {
	c := s.newCache()
	good := samplePost("p1", time.Now())

	s.store.EXPECT().LRange(gomock.Any(), testKey, int64(0), int64(1)).
		Return(redis.NewStringSliceResult([]string{encode(s, good), "{not-json"}, nil))

	posts, err := c.List(context.Background(), 2)

	s.NoError(err)
	s.Empty(posts)
	s.NotNil(posts)
}

func (s *RedisCacheTestSuite) TestList_StoreFailureDegradesToEmpty() {
	c := s.newCache()

	s.store.EXPECT().LRange(gomock.Any(), testKey, int64(0), int64(4)).
		Return(redis.NewStringSliceResult(nil, errors.New("timeout")))

	posts, err := c.List(context.Background(), 5)

	s.NoError(err)
	s.Empty(posts)
}

func (s *RedisCacheTestSuite) TestTrim_DisabledIsNoop() {
	s.cfg.Enabled = false
	c := s.newCache()

	s.NoError(c.Trim(context.Background()))
}

// memoryList applies LPUSH, LRANGE and LTRIM to an in-memory slice with redis
// index semantics.
type memoryList struct {
	items []string
}

func (m *memoryList) LPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		m.items = append([]string{v.(string)}, m.items...)
	}
	return redis.NewIntResult(int64(len(m.items)), nil)
}

func (m *memoryList) LRange(_ context.Context, _ string, start, stop int64) *redis.StringSliceCmd {
	lo, hi := m.window(start, stop)
	return redis.NewStringSliceResult(append([]string{}, m.items[lo:hi]...), nil)
}

func (m *memoryList) LTrim(_ context.Context, _ string, start, stop int64) *redis.StatusCmd {
	lo, hi := m.window(start, stop)
	m.items = append([]string{}, m.items[lo:hi]...)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryList) window(start, stop int64) (int64, int64) {
	n := int64(len(m.items))
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return 0, 0
	}
	return start, stop + 1
}

func (s *RedisCacheTestSuite) TestAppend_PastMaxKeepsNewestMaxEntries() {
	list := &memoryList{}
	s.tasks.EXPECT().Submit("cache-trim", gomock.Any()).DoAndReturn(
		func(_ string, task worker.Task) bool {
			_ = task(context.Background())
			return true
		},
	).AnyTimes()
	c := NewRedisCache(list, s.cfg, resilience.NewRegistry(s.logger), s.tasks, s.logger)
	base := time.Now()

	for i := 1; i <= 12; i++ {
		s.True(c.Append(context.Background(), samplePost(fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	s.Len(list.items, 5)

	posts, err := c.List(context.Background(), 5)
	s.Require().NoError(err)
	s.Require().Len(posts, 5)
	for i, p := range posts {
		s.Equal(fmt.Sprintf("p%d", 12-i), p.ID)
	}
}
