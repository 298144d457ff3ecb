package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "govnet/pkg/domain"
)

func TestAuthorityState_IsGovernor(t *testing.T) {
	deployer := id.MustParseAddress("0xd0")
	other := id.MustParseAddress("0xe0")

	t.Run("self governing domain authorizes only its proxy", func(t *testing.T) {
		a := NewAuthorityState(1, deployer)
		assert.True(t, a.SelfGoverning())
		assert.True(t, a.IsGovernor(1, deployer))
		assert.False(t, a.IsGovernor(1, other))
		assert.False(t, a.IsGovernor(2, deployer))
	})

	t.Run("remote governor authorizes its domain, not local callers", func(t *testing.T) {
		a := NewAuthorityState(1, deployer)
		a.Transfer(2, other)
		assert.False(t, a.SelfGoverning())
		assert.True(t, a.GovernorAddress.IsZero())
		assert.True(t, a.IsGovernor(2, other))
		assert.True(t, a.IsGovernor(2, deployer))
		assert.False(t, a.IsGovernor(1, deployer))
	})

	t.Run("transfer back to self adopts the named proxy", func(t *testing.T) {
		a := NewAuthorityState(1, deployer)
		a.Transfer(2, other)
		a.Transfer(1, other)
		assert.True(t, a.IsGovernor(1, other))
		assert.False(t, a.IsGovernor(1, deployer))
	})

	t.Run("self governing without a proxy authorizes nobody locally", func(t *testing.T) {
		a := NewAuthorityState(1, id.ZeroAddress)
		assert.False(t, a.IsGovernor(1, id.ZeroAddress))
	})
}

func TestAddressRegistry(t *testing.T) {
	r := NewAddressRegistry()
	router2 := id.MustParseAddress("0x02")

	t.Run("resolve misses with ErrUnknownPeer", func(t *testing.T) {
		_, err := r.Resolve(2)
		assert.ErrorIs(t, err, ErrUnknownPeer)
	})

	t.Run("zero address is rejected", func(t *testing.T) {
		assert.ErrorIs(t, r.Set(2, id.ZeroAddress), ErrInvalidAddress)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("set overwrites instead of appending", func(t *testing.T) {
		require.NoError(t, r.Set(2, id.MustParseAddress("0x99")))
		require.NoError(t, r.Set(2, router2))
		require.NoError(t, r.Set(1, id.MustParseAddress("0x01")))
		got, err := r.Resolve(2)
		require.NoError(t, err)
		assert.Equal(t, router2, got)
		assert.Equal(t, []id.Domain{1, 2}, r.Domains())
	})

	t.Run("clone is independent", func(t *testing.T) {
		c := r.Clone()
		require.NoError(t, c.Set(3, id.MustParseAddress("0x03")))
		assert.Equal(t, 2, r.Len())
		assert.Equal(t, 3, c.Len())
	})

	t.Run("json round trip keeps entries", func(t *testing.T) {
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		var out AddressRegistry
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, r.Entries(), out.Entries())
	})
}

func TestAction_Validate(t *testing.T) {
	target := id.MustParseAddress("0x7a")

	assert.NoError(t, SetGovernorAction(2, target).Validate())
	assert.ErrorIs(t, SetGovernorAction(2, id.ZeroAddress).Validate(), ErrInvalidAction)
	assert.NoError(t, CallAction(Call{Target: target, Data: []byte("pause")}).Validate())
	assert.ErrorIs(t, CallAction().Validate(), ErrInvalidAction)
	assert.ErrorIs(t, CallAction(Call{}).Validate(), ErrInvalidAction)
	assert.NoError(t, CancelRecoveryAction().Validate())
	assert.ErrorIs(t, Action{Kind: 42}.Validate(), ErrInvalidAction)
}
