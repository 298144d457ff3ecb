package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
)

type recordingInbox struct {
	mu       sync.Mutex
	received []models.Envelope
}

func (r *recordingInbox) HandleMessage(_ context.Context, env models.Envelope) models.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, env)
	return models.Accepted(env)
}

func envelopeTo(dst id.Domain) models.Envelope {
	return models.Envelope{
		ID:                uuid.New(),
		DestinationDomain: dst,
		Action:            models.CancelRecoveryAction(),
	}
}

func TestFabric(t *testing.T) {
	ctx := context.Background()
	addrA := id.MustParseAddress("0xa")
	addrB := id.MustParseAddress("0xb")

	t.Run("sender stamps source identity", func(t *testing.T) {
		f := NewFabric()
		inbox := &recordingInbox{}
		f.Attach(2, inbox)

		env := envelopeTo(2)
		env.SourceDomain = 99
		env.SourceAddress = addrB
		require.NoError(t, f.Sender(1, addrA).Send(ctx, env))
		f.Flush(ctx)

		require.Len(t, inbox.received, 1)
		assert.Equal(t, id.Domain(1), inbox.received[0].SourceDomain)
		assert.Equal(t, addrA, inbox.received[0].SourceAddress)
	})

	t.Run("per route FIFO", func(t *testing.T) {
		f := NewFabric()
		inbox := &recordingInbox{}
		f.Attach(2, inbox)
		f.Attach(3, &recordingInbox{})

		sender := f.Sender(1, addrA)
		var sent []uuid.UUID
		for i := range 5 {
			env := envelopeTo(2)
			sent = append(sent, env.ID)
			require.NoError(t, sender.Send(ctx, env))
			if i%2 == 0 {
				require.NoError(t, sender.Send(ctx, envelopeTo(3)))
			}
		}

		_, ok := f.DeliverRoute(ctx, 1, 3)
		require.True(t, ok)
		f.Flush(ctx)

		var got []uuid.UUID
		for _, env := range inbox.received {
			got = append(got, env.ID)
		}
		assert.Equal(t, sent, got)
	})

	t.Run("unknown destination fails to send", func(t *testing.T) {
		f := NewFabric()
		err := f.Sender(1, addrA).Send(ctx, envelopeTo(7))
		assert.ErrorIs(t, err, ErrNoRoute)
	})

	t.Run("partition fails sends until healed", func(t *testing.T) {
		f := NewFabric()
		f.Attach(2, &recordingInbox{})
		f.Partition(1, 2)

		err := f.Sender(1, addrA).Send(ctx, envelopeTo(2))
		assert.ErrorIs(t, err, ErrPartitioned)

		f.Heal(1, 2)
		assert.NoError(t, f.Sender(1, addrA).Send(ctx, envelopeTo(2)))
	})

	t.Run("drop discards queued envelopes", func(t *testing.T) {
		f := NewFabric()
		inbox := &recordingInbox{}
		f.Attach(2, inbox)
		require.NoError(t, f.Sender(1, addrA).Send(ctx, envelopeTo(2)))
		require.NoError(t, f.Sender(1, addrA).Send(ctx, envelopeTo(2)))

		assert.Len(t, f.PendingFor(1, 2), 2)
		assert.Equal(t, 2, f.Drop(1, 2))
		assert.Zero(t, f.Pending())
		assert.Empty(t, f.Flush(ctx))
		assert.Empty(t, inbox.received)
	})
}
