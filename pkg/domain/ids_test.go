package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "govnet/pkg/domain-errors"
)

// TestParseAddress_Canonicalisation checks that native addresses of any
// width end up in the same 32-byte left-padded form.
func TestParseAddress_Canonicalisation(t *testing.T) {
	t.Run("20-byte address is left padded", func(t *testing.T) {
		a, err := ParseAddress("0x00000000000000000000000000000000000000ab")
		require.NoError(t, err)
		assert.Equal(t, byte(0xab), a[AddressLen-1])
		assert.Equal(t, "0x"+strings.Repeat("0", 62)+"ab", a.String())
	})

	t.Run("prefix is optional and odd length is tolerated", func(t *testing.T) {
		a, err := ParseAddress("abc")
		require.NoError(t, err)
		b, err := ParseAddress("0x0abc")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := ParseAddress("  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non hex", func(t *testing.T) {
		_, err := ParseAddress("0xnothex")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects more than 32 bytes", func(t *testing.T) {
		_, err := ParseAddress(strings.Repeat("ff", AddressLen+1))
		require.Error(t, err)
	})
}

func TestAddress_JSON(t *testing.T) {
	type wrapper struct {
		Governor Address `json:"governor"`
	}
	in := wrapper{Governor: MustParseAddress("0xbeef")}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), in.Governor.String())

	var out wrapper
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain("1000")
	require.NoError(t, err)
	assert.Equal(t, Domain(1000), d)
	assert.Equal(t, "1000", d.String())

	_, err = ParseDomain("-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseDomain("4294967296")
	assert.Error(t, err)
}
