package memory

import (
	"context"
	"fmt"
	"sync"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

// InMemoryStore keeps router snapshots in process. Snapshots are cloned on
// the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[id.Domain]*models.RouterState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[id.Domain]*models.RouterState)}
}

func (s *InMemoryStore) Load(_ context.Context, domain id.Domain) (*models.RouterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[domain]
	if !ok {
		return nil, fmt.Errorf("router %s: %w", domain, sentinel.ErrNotFound)
	}
	return state.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, state *models.RouterState) error {
	if state == nil {
		return fmt.Errorf("nil snapshot: %w", sentinel.ErrInvalidState)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Domain] = state.Clone()
	return nil
}

// Domains lists the domains with a saved snapshot.
func (s *InMemoryStore) Domains() []id.Domain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]id.Domain, 0, len(s.states))
	for d := range s.states {
		out = append(out, d)
	}
	return out
}
