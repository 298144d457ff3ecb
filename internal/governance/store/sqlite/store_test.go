package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshot(t *testing.T, domain id.Domain, peers ...id.Domain) *models.RouterState {
	t.Helper()
	recovery, err := models.NewRecoveryTimelock(id.MustParseAddress("0x3a"), time.Hour, models.PolicyRearm)
	require.NoError(t, err)
	registry := models.NewAddressRegistry()
	for i, p := range peers {
		require.NoError(t, registry.Set(p, peerAddress(t, i)))
	}
	return &models.RouterState{
		Domain:    domain,
		Address:   id.MustParseAddress("0xa0"),
		Authority: models.NewAuthorityState(domain, id.MustParseAddress("0x60")),
		Peers:     registry,
		Recovery:  recovery,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func peerAddress(t *testing.T, i int) id.Address {
	t.Helper()
	addr, err := id.AddressFromBytes([]byte{0xa0, byte(i + 1)})
	require.NoError(t, err)
	return addr
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	want := snapshot(t, 1, 1, 2, 3)
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_SaveReplacesPeers(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Save(ctx, snapshot(t, 1, 1, 2, 3)))
	next := snapshot(t, 1, 1, 4)
	next.Authority.Transfer(4, id.ZeroAddress)
	require.NoError(t, store.Save(ctx, next))

	got, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []id.Domain{1, 4}, got.Peers.Domains())
	assert.Equal(t, id.Domain(4), got.Authority.GovernorDomain)
	assert.True(t, got.Authority.GovernorAddress.IsZero())
}

func TestStore_LoadUnknown(t *testing.T) {
	_, err := openTestStore(t).Load(context.Background(), 9)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestStore_RejectsInvalidSnapshot(t *testing.T) {
	state := snapshot(t, 1)
	state.Authority.LocalDomain = 2
	err := openTestStore(t).Save(context.Background(), state)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "govnet.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snapshot(t, 1, 1)))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, id.Domain(1), got.Domain)
}
