package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"govnet/internal/governance/models"
	"govnet/internal/governance/ports"
	"govnet/internal/governance/wire"
	id "govnet/pkg/domain"
)

type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Consumer dispatches records from router topics to the inbox registered
// for each topic. Undecodable records and records for unregistered topics
// are logged and committed so they are not redelivered forever.
type Consumer struct {
	client      fetcher
	codec       *wire.Codec
	topicPrefix string
	logger      *slog.Logger

	mu       sync.RWMutex
	handlers map[string]ports.Inbox
	onResult func(models.Receipt)
}

type ConsumerOption func(*Consumer)

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReceiptHook observes every receipt, for tests and devnet tooling.
func WithReceiptHook(fn func(models.Receipt)) ConsumerOption {
	return func(c *Consumer) {
		c.onResult = fn
	}
}

func NewConsumer(client *kgo.Client, codec *wire.Codec, topicPrefix string, opts ...ConsumerOption) *Consumer {
	return newConsumer(client, codec, topicPrefix, opts...)
}

func newConsumer(client fetcher, codec *wire.Codec, topicPrefix string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:      client,
		codec:       codec,
		topicPrefix: topicPrefix,
		logger:      slog.Default(),
		handlers:    make(map[string]ports.Inbox),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Register routes the inbound topic of domain to inbox.
func (c *Consumer) Register(domain id.Domain, inbox ports.Inbox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[TopicFor(c.topicPrefix, domain)] = inbox
}

// Run polls until ctx is done or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			c.handle(ctx, record)
			handled = append(handled, record)
		})
		if len(handled) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, handled...); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "records", len(handled), "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	c.mu.RLock()
	inbox, ok := c.handlers[record.Topic]
	c.mu.RUnlock()
	if !ok {
		c.logger.WarnContext(ctx, "no router for topic, skipping record",
			"topic", record.Topic,
			"key", string(record.Key),
		)
		return
	}

	env, err := c.codec.Decode(record.Value)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable envelope",
			"topic", record.Topic,
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return
	}
	// The record key is the producing domain; a mismatch means the frame
	// was produced by something other than a govnet sender.
	if string(record.Key) != env.SourceDomain.String() {
		c.logger.WarnContext(ctx, "dropping envelope with mismatched key",
			"topic", record.Topic,
			"key", string(record.Key),
			"source_domain", env.SourceDomain,
		)
		return
	}

	receipt := inbox.HandleMessage(ctx, env)
	if !receipt.Accepted {
		c.logger.DebugContext(ctx, "envelope rejected",
			"message_id", receipt.MessageID.String(),
			"action", receipt.Kind.String(),
			"reason", receipt.Reason,
		)
	}
	if c.onResult != nil {
		c.onResult(receipt)
	}
}
