package redisx_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

type redisSuite struct {
	suite.Suite

	container testcontainers.Container
	rdb       *redis.Client
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	suite.Run(t, new(redisSuite))
}

func (s *redisSuite) SetupSuite() {
	ctx := s.T().Context()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = ctr

	endpoint, err := ctr.Endpoint(ctx, "")
	s.Require().NoError(err)
	s.rdb = redisx.New(endpoint)
}

func (s *redisSuite) TearDownSuite() {
	if s.rdb != nil {
		s.NoError(s.rdb.Close())
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *redisSuite) TestIdempotencyLifecycle() {
	t := s.T()
	ctx := t.Context()
	idem := &redisx.Idempotency{RDB: s.rdb}
	user, key := uuid.NewString(), uuid.NewString()

	existing, err := idem.Reserve(ctx, user, key)
	require.NoError(t, err)
	assert.Empty(t, existing)

	_, err = idem.Reserve(ctx, user, key)
	require.ErrorIs(t, err, redisx.ErrInFlight)

	require.NoError(t, idem.Complete(ctx, user, key, "order-1"))

	existing, err = idem.Reserve(ctx, user, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", existing)

	// the same key from another user is independent
	existing, err = idem.Reserve(ctx, uuid.NewString(), key)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func (s *redisSuite) TestIdempotencyRelease() {
	t := s.T()
	ctx := t.Context()
	idem := &redisx.Idempotency{RDB: s.rdb}
	user, key := uuid.NewString(), uuid.NewString()

	_, err := idem.Reserve(ctx, user, key)
	require.NoError(t, err)
	require.NoError(t, idem.Release(ctx, user, key))

	existing, err := idem.Reserve(ctx, user, key)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func (s *redisSuite) TestDedup() {
	t := s.T()
	ctx := t.Context()
	d := &redisx.Dedup{RDB: s.rdb, Service: "ledger-test"}
	id := uuid.NewString()

	first, err := d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Forget(ctx, id))
	first, err = d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)
}
