package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"govnet/internal/governance/models"
	"govnet/internal/governance/wire"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

const (
	headerMessageID = "govnet-message-id"
	headerAction    = "govnet-action"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sender is the ports.Transport of one router. It stamps the bound source
// identity, then produces synchronously so a nil error means the broker
// acknowledged the record.
type Sender struct {
	producer    producer
	codec       *wire.Codec
	topicPrefix string
	domain      id.Domain
	address     id.Address
}

func NewSender(client *kgo.Client, codec *wire.Codec, topicPrefix string, domain id.Domain, address id.Address) *Sender {
	return newSender(client, codec, topicPrefix, domain, address)
}

func newSender(p producer, codec *wire.Codec, topicPrefix string, domain id.Domain, address id.Address) *Sender {
	return &Sender{
		producer:    p,
		codec:       codec,
		topicPrefix: topicPrefix,
		domain:      domain,
		address:     address,
	}
}

func (s *Sender) Send(ctx context.Context, env models.Envelope) error {
	env.SourceDomain = s.domain
	env.SourceAddress = s.address

	value, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: TopicFor(s.topicPrefix, env.DestinationDomain),
		Key:   []byte(s.domain.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerMessageID, Value: []byte(env.ID.String())},
			{Key: headerAction, Value: []byte(env.Action.Kind.String())},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("%w: produce to %s: %w", sentinel.ErrUnavailable, record.Topic, err)
	}
	return nil
}
