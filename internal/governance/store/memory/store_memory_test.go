package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

func snapshot(t *testing.T, domain id.Domain) *models.RouterState {
	t.Helper()
	recovery, err := models.NewRecoveryTimelock(id.MustParseAddress("0x3a"), time.Hour, models.PolicyRearm)
	require.NoError(t, err)
	peers := models.NewAddressRegistry()
	require.NoError(t, peers.Set(domain, id.MustParseAddress("0xa1")))
	return &models.RouterState{
		Domain:    domain,
		Address:   id.MustParseAddress("0xa1"),
		Authority: models.NewAuthorityState(domain, id.MustParseAddress("0x60")),
		Peers:     peers,
		Recovery:  recovery,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load unknown domain", func(t *testing.T) {
		_, err := NewInMemoryStore().Load(ctx, 7)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		store := NewInMemoryStore()
		state := snapshot(t, 7)
		require.NoError(t, store.Save(ctx, state))

		got, err := store.Load(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, state, got)
		assert.Equal(t, []id.Domain{7}, store.Domains())
	})

	t.Run("snapshots are isolated from callers", func(t *testing.T) {
		store := NewInMemoryStore()
		state := snapshot(t, 7)
		require.NoError(t, store.Save(ctx, state))

		require.NoError(t, state.Peers.Set(8, id.MustParseAddress("0xa2")))
		got, err := store.Load(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Peers.Len())

		require.NoError(t, got.Peers.Set(9, id.MustParseAddress("0xa3")))
		again, err := store.Load(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Peers.Len())
	})

	t.Run("invalid snapshot refused", func(t *testing.T) {
		state := snapshot(t, 7)
		state.Address = id.ZeroAddress
		err := NewInMemoryStore().Save(ctx, state)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}
