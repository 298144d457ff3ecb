package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "govnet/pkg/domain"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults when unset", func(t *testing.T) {
		assert.True(t, Caller(ctx).IsZero())
		assert.Empty(t, RequestID(ctx))
		assert.False(t, Now(ctx).IsZero())
	})

	t.Run("round trip", func(t *testing.T) {
		caller := id.MustParseAddress("0xabc")
		fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		ctx := WithCaller(ctx, caller)
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithTime(ctx, fixed)

		assert.Equal(t, caller, Caller(ctx))
		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, fixed, Now(ctx))
	})
}
