// Package kafka carries governance envelopes between router processes over
// a Kafka-compatible broker. Each destination domain owns one topic; records
// are keyed by source domain so every (source, destination) pair maps to a
// single partition and stays FIFO.
package kafka

import (
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"govnet/internal/platform/config"
	id "govnet/pkg/domain"
	strs "govnet/pkg/platform/strings"
)

// TopicFor names the inbound topic of domain.
func TopicFor(prefix string, domain id.Domain) string {
	return prefix + "." + domain.String()
}

// GroupFor names the consumer group of the router serving domain.
func GroupFor(prefix string, domain id.Domain) string {
	return prefix + ".router." + domain.String()
}

// NewClient builds a client that produces to any router topic and consumes
// the inbound topic of each listed domain. Offsets are committed manually
// after an envelope is handled.
func NewClient(cfg config.TransportConfig, logger *slog.Logger, domains ...id.Domain) (*kgo.Client, error) {
	brokers := strs.DedupeAndTrim(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("govnet"),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	}
	if logger != nil {
		opts = append(opts, kgo.WithLogger(slogAdapter{logger}))
	}
	if len(domains) > 0 {
		topics := make([]string, 0, len(domains))
		for _, d := range domains {
			topics = append(topics, TopicFor(cfg.TopicPrefix, d))
		}
		opts = append(opts,
			kgo.ConsumerGroup(GroupFor(cfg.GroupPrefix, domains[0])),
			kgo.ConsumeTopics(topics...),
			kgo.DisableAutoCommit(),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Level() kgo.LogLevel {
	return kgo.LogLevelWarn
}

func (a slogAdapter) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	switch level {
	case kgo.LogLevelError:
		a.logger.Error(msg, keyvals...)
	case kgo.LogLevelWarn:
		a.logger.Warn(msg, keyvals...)
	case kgo.LogLevelInfo:
		a.logger.Info(msg, keyvals...)
	default:
		a.logger.Debug(msg, keyvals...)
	}
}
