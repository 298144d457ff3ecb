//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"govnet/internal/governance/models"
	"govnet/internal/governance/router"
	snapredis "govnet/internal/governance/store/redis"
	"govnet/internal/platform/config"
	"govnet/internal/platform/logger"
	platformredis "govnet/internal/platform/redis"
	"govnet/internal/transport/memory"
	id "govnet/pkg/domain"
	"govnet/pkg/testutil/containers"
)

type RedisRestartSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *platformredis.Client
}

func TestRedisRestartSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisRestartSuite))
}

func (s *RedisRestartSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	client, err := platformredis.New(context.Background(), config.RedisConfig{URL: s.redis.URL, PoolSize: 4})
	s.Require().NoError(err)
	s.client = client
}

func (s *RedisRestartSuite) TearDownSuite() {
	_ = s.client.Close()
}

func (s *RedisRestartSuite) SetupTest() {
	s.Require().NoError(s.redis.Flush(context.Background()))
}

func (s *RedisRestartSuite) boot(fabric *memory.Fabric) *router.Router {
	cfg := router.Config{
		Domain:          7,
		Address:         id.MustParseAddress("0xa7"),
		Governor:        id.MustParseAddress("0x67"),
		RecoveryManager: id.MustParseAddress("0x37"),
		RecoveryDelay:   time.Hour,
		RecoveryPolicy:  models.PolicyRearm,
	}
	r, err := router.New(cfg, fabric.Sender(cfg.Domain, cfg.Address),
		router.WithLogger(logger.Discard()),
		router.WithStore(snapredis.NewRedis(s.client.Client)),
	)
	s.Require().NoError(err)
	s.Require().NoError(r.Initialize(context.Background()))
	return r
}

func (s *RedisRestartSuite) TestRouterRestoresAfterRestart() {
	ctx := context.Background()
	fabric := memory.NewFabric(memory.WithLogger(logger.Discard()))

	first := s.boot(fabric)
	s.Require().NoError(first.SetPeer(ctx, id.MustParseAddress("0x67"), 8, id.MustParseAddress("0xa8")))
	s.Require().NoError(first.InitiateRecovery(ctx, id.MustParseAddress("0x37")))

	restarted := s.boot(fabric)
	addr, err := restarted.Resolve(8)
	s.Require().NoError(err)
	s.Equal(id.MustParseAddress("0xa8"), addr)

	state, err := restarted.State()
	s.Require().NoError(err)
	s.Equal(models.RecoveryPending, state.Recovery.Status)

	domains, err := snapredis.NewRedis(s.client.Client).Domains(ctx)
	s.Require().NoError(err)
	s.Equal([]id.Domain{7}, domains)
}
