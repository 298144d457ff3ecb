package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

type RedisStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewRedis(s.client, WithKeyPrefix("test:"))
}

func (s *RedisStoreSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *RedisStoreSuite) snapshot(domain id.Domain) *models.RouterState {
	recovery, err := models.NewRecoveryTimelock(id.MustParseAddress("0x3a"), time.Hour, models.PolicySingleUse)
	s.Require().NoError(err)
	since := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	recovery.Status = models.RecoveryPending
	recovery.ActiveSince = &since

	peers := models.NewAddressRegistry()
	s.Require().NoError(peers.Set(domain, id.MustParseAddress("0xa1")))
	s.Require().NoError(peers.Set(domain+1, id.MustParseAddress("0xa2")))
	return &models.RouterState{
		Domain:    domain,
		Address:   id.MustParseAddress("0xa1"),
		Authority: models.NewAuthorityState(domain, id.MustParseAddress("0x60")),
		Peers:     peers,
		Recovery:  recovery,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	want := s.snapshot(5)
	s.Require().NoError(s.store.Save(ctx, want))

	got, err := s.store.Load(ctx, 5)
	s.Require().NoError(err)
	s.Equal(want.Address, got.Address)
	s.Equal(want.Authority, got.Authority)
	s.Equal(want.Peers.Entries(), got.Peers.Entries())
	s.Equal(want.Recovery.Status, got.Recovery.Status)
	s.True(want.Recovery.ActiveSince.Equal(*got.Recovery.ActiveSince))
	s.True(s.mr.Exists("test:govnet:router:5"))
}

func (s *RedisStoreSuite) TestLoadUnknown() {
	_, err := s.store.Load(context.Background(), 5)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestLoadCorrupt() {
	s.Require().NoError(s.mr.Set("test:govnet:router:5", "{"))
	_, err := s.store.Load(context.Background(), 5)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *RedisStoreSuite) TestLoadMismatchedKey() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.snapshot(5)))
	raw, err := s.mr.Get("test:govnet:router:5")
	s.Require().NoError(err)
	s.Require().NoError(s.mr.Set("test:govnet:router:6", raw))

	_, err = s.store.Load(ctx, 6)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *RedisStoreSuite) TestDomains() {
	ctx := context.Background()
	for _, d := range []id.Domain{30, 10, 20} {
		s.Require().NoError(s.store.Save(ctx, s.snapshot(d)))
	}
	domains, err := s.store.Domains(ctx)
	s.Require().NoError(err)
	s.Equal([]id.Domain{10, 20, 30}, domains)
}

func (s *RedisStoreSuite) TestUnavailable() {
	s.mr.Close()
	err := s.store.Save(context.Background(), s.snapshot(5))
	s.ErrorIs(err, sentinel.ErrUnavailable)
}
