//go:build integration

package kafka_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"

	"govnet/internal/governance/models"
	"govnet/internal/governance/wire"
	"govnet/internal/platform/config"
	"govnet/internal/transport/kafka"
	id "govnet/pkg/domain"
	"govnet/pkg/testutil/containers"
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

func (r *recordingInbox) snapshot() []models.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Envelope{}, r.received...)
}

func TestKafkaTransport_FIFOPerRoute(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	redpanda := containers.GetManager().GetRedpanda(t)
	cfg := config.TransportConfig{
		Brokers:     redpanda.Brokers,
		TopicPrefix: "it." + uuid.NewString()[:8],
		GroupPrefix: "it",
		Partitions:  3,
		Replication: 1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	producerClient, err := kafka.NewClient(cfg, nil)
	require.NoError(t, err)
	defer producerClient.Close()
	require.NoError(t, kafka.EnsureTopics(ctx, kadm.NewClient(producerClient), cfg.TopicPrefix, cfg.Partitions, cfg.Replication, 1000, 2000))
	// Second call is a no-op.
	require.NoError(t, kafka.EnsureTopics(ctx, kadm.NewClient(producerClient), cfg.TopicPrefix, cfg.Partitions, cfg.Replication, 2000))

	codec := wire.NewCodec([]byte("it-secret"))
	sender := kafka.NewSender(producerClient, codec, cfg.TopicPrefix, 1000, id.MustParseAddress("0xa1"))

	const count = 20
	var sent []uuid.UUID
	for range count {
		env := models.Envelope{
			ID:                 uuid.New(),
			DestinationDomain:  2000,
			DestinationAddress: id.MustParseAddress("0xa2"),
			Action:             models.CancelRecoveryAction(),
		}
		require.NoError(t, sender.Send(ctx, env))
		sent = append(sent, env.ID)
	}

	consumerClient, err := kafka.NewClient(cfg, nil, 2000)
	require.NoError(t, err)
	defer consumerClient.Close()

	inbox := &recordingInbox{}
	consumer := kafka.NewConsumer(consumerClient, codec, cfg.TopicPrefix)
	consumer.Register(2000, inbox)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx) }()

	require.Eventually(t, func() bool { return len(inbox.snapshot()) == count }, 45*time.Second, 100*time.Millisecond)
	stop()
	<-done

	for i, env := range inbox.snapshot() {
		require.Equal(t, sent[i], env.ID, "envelope %d out of order", i)
		require.Equal(t, id.Domain(1000), env.SourceDomain)
	}
}
