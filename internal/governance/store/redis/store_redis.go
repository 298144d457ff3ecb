package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

const (
	routerKeyPrefix = "govnet:router:"
	routerIndexKey  = "govnet:routers"
)

// RedisStore keeps each router snapshot as one JSON value. Snapshots have
// no TTL; the client lifecycle is managed by the caller.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces keys so several networks can share one Redis.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(domain id.Domain) string {
	return s.prefix + routerKeyPrefix + domain.String()
}

func (s *RedisStore) Load(ctx context.Context, domain id.Domain) (*models.RouterState, error) {
	raw, err := s.client.Get(ctx, s.key(domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("router %s: %w", domain, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load router %s: %w: %w", domain, sentinel.ErrUnavailable, err)
	}

	var state models.RouterState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: decode router %s: %w", sentinel.ErrInvalidState, domain, err)
	}
	if state.Domain != domain {
		return nil, fmt.Errorf("%w: key %s holds router %s", sentinel.ErrInvalidState, domain, state.Domain)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	return &state, nil
}

// Save writes the snapshot and indexes its domain in one MULTI block.
func (s *RedisStore) Save(ctx context.Context, state *models.RouterState) error {
	if state == nil {
		return fmt.Errorf("nil snapshot: %w", sentinel.ErrInvalidState)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode router %s: %w", state.Domain, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(state.Domain), raw, 0)
		pipe.SAdd(ctx, s.prefix+routerIndexKey, state.Domain.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("save router %s: %w: %w", state.Domain, sentinel.ErrUnavailable, err)
	}
	return nil
}

// Domains lists the domains with a saved snapshot in ascending order.
func (s *RedisStore) Domains(ctx context.Context) ([]id.Domain, error) {
	members, err := s.client.SMembers(ctx, s.prefix+routerIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list routers: %w", err)
	}
	out := make([]id.Domain, 0, len(members))
	for _, m := range members {
		d, err := id.ParseDomain(m)
		if err != nil {
			return nil, fmt.Errorf("%w: index member %q", sentinel.ErrInvalidState, m)
		}
		out = append(out, d)
	}
	slices.Sort(out)
	return out, nil
}
