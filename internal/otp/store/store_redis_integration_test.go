//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/otp/store"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/testutil"
	"rollcall/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client, store.WithRetention(time.Minute))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	session := testutil.NewSessionBuilder().WithCode("482913").Build()
	s.Require().NoError(s.store.Create(ctx, session))

	found, err := s.store.FindByCode(ctx, "482913")
	s.Require().NoError(err)
	s.Equal(session.ID, found.ID)
	s.Equal(session.Classification, found.Classification)
	s.True(session.ExpiresAt.Equal(found.ExpiresAt))

	_, err = s.store.FindByCode(ctx, "000000")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestLiveCodeConflict() {
	ctx := context.Background()
	first := testutil.NewSessionBuilder().WithCode("111111").Build()
	s.Require().NoError(s.store.Create(ctx, first))

	second := testutil.NewSessionBuilder().WithCode("111111").Build()
	s.ErrorIs(s.store.Create(ctx, second), sentinel.ErrConflict)
}

func (s *RedisStoreSuite) TestLeaseExpiresNatively() {
	ctx := context.Background()
	short := testutil.NewSessionBuilder().WithCode("222222").Build()
	short.ExpiresAt = short.IssuedAt.Add(time.Second)
	s.Require().NoError(s.store.Create(ctx, short))

	s.Eventually(func() bool {
		next := testutil.NewSessionBuilder().WithCode("222222").Build()
		return s.store.Create(ctx, next) == nil
	}, 5*time.Second, 100*time.Millisecond)

	// the expired session is still readable by id during retention
	old, err := s.store.FindByID(ctx, short.ID)
	s.Require().NoError(err)
	s.Equal(short.ID, old.ID)
}

func (s *RedisStoreSuite) TestConcurrentCreateSameCode() {
	ctx := context.Background()

	result := testutil.RunConcurrent(50, func(int) error {
		return s.store.Create(ctx, testutil.NewSessionBuilder().WithCode("333333").Build())
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(49), result.Conflicts)
}
