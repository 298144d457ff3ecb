package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"

	"govnet/internal/governance/models"
	"govnet/internal/governance/ports"
	"govnet/internal/governance/wire"
	"govnet/internal/platform/config"
	"govnet/internal/transport/guard"
	"govnet/internal/transport/kafka"
	"govnet/internal/transport/memory"
	id "govnet/pkg/domain"
)

// link is the transport a router sends through plus the loop that feeds
// its inbox.
type link struct {
	sender ports.Transport
	attach func(inbox ports.Inbox)
	run    func(ctx context.Context) error
	close  func()
}

func openTransport(ctx context.Context, cfg config.Config, domain id.Domain, address id.Address, log *slog.Logger) (*link, error) {
	if cfg.Transport.Backend != config.TransportKafka {
		// Standalone: only this router is attached, so remote sends fail
		// with no route and are reported to the caller.
		fabric := memory.NewFabric(memory.WithLogger(log))
		return &link{
			sender: fabric.Sender(domain, address),
			attach: func(inbox ports.Inbox) { fabric.Attach(domain, inbox) },
			run:    fabric.Run,
			close:  func() {},
		}, nil
	}

	client, err := kafka.NewClient(cfg.Transport, log, domain)
	if err != nil {
		return nil, err
	}
	peers, err := cfg.Router.ParsedPeers()
	if err != nil {
		client.Close()
		return nil, err
	}
	domains := []id.Domain{domain}
	for d := range peers {
		if d != domain {
			domains = append(domains, d)
		}
	}
	if err := kafka.EnsureTopics(ctx, kadm.NewClient(client), cfg.Transport.TopicPrefix,
		cfg.Transport.Partitions, cfg.Transport.Replication, domains...); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topics: %w", err)
	}

	codec := wire.NewCodec([]byte(cfg.Transport.SigningKey))
	if cfg.Transport.SigningKey == "" {
		log.Warn("envelope signing disabled")
	}
	consumer := kafka.NewConsumer(client, codec, cfg.Transport.TopicPrefix,
		kafka.WithLogger(log),
		kafka.WithReceiptHook(func(r models.Receipt) {
			if !r.Accepted {
				log.Warn("inbound envelope rejected",
					"message_id", r.MessageID.String(),
					"kind", r.Kind.String(),
					"reason", r.Reason,
				)
			}
		}),
	)
	return &link{
		sender: guard.New(kafka.NewSender(client, codec, cfg.Transport.TopicPrefix, domain, address), guard.WithLogger(log)),
		attach: func(inbox ports.Inbox) { consumer.Register(domain, inbox) },
		run:    consumer.Run,
		close:  client.Close,
	}, nil
}
