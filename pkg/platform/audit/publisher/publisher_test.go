package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "govnet/pkg/platform/audit"
	"govnet/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Domain: 1,
		Action: string(audit.EventGovernorTransferred),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Domain: 2,
		Action: string(audit.EventGovernorMessageRejected),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), 2)
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Domain: 3,
			Action: string(audit.EventPeerSet),
		}))
	}
	pub.Close()

	events, err := store.ListByDomain(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestRingBuffer_DropsOldest(t *testing.T) {
	b := NewRingBuffer(2)
	b.Enqueue(audit.Event{Subject: "a"})
	b.Enqueue(audit.Event{Subject: "b"})
	b.Enqueue(audit.Event{Subject: "c"})

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(1), b.Dropped())

	batch := b.DequeueBatch(5)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Subject)
	assert.Equal(t, "c", batch[1].Subject)
	assert.Nil(t, b.DequeueBatch(1))
}
