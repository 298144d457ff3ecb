// Package memory is an in-process transport connecting routers of several
// domains. Envelopes queue in send order and are delivered explicitly
// (Deliver, Flush) or by a background loop (Run), so tests control
// interleavings while per (source, destination) order is always FIFO.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"govnet/internal/governance/models"
	"govnet/internal/governance/ports"
	id "govnet/pkg/domain"
)

var (
	ErrNoRoute     = errors.New("no router attached for destination domain")
	ErrPartitioned = errors.New("route partitioned")
)

type route struct {
	source      id.Domain
	destination id.Domain
}

// Fabric is a shared message bus for in-process routers.
type Fabric struct {
	mu          sync.Mutex
	inboxes     map[id.Domain]ports.Inbox
	queue       []models.Envelope
	partitioned map[route]bool
	notify      chan struct{}
	logger      *slog.Logger
}

type Option func(*Fabric)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fabric) {
		f.logger = logger
	}
}

func NewFabric(opts ...Option) *Fabric {
	f := &Fabric{
		inboxes:     make(map[id.Domain]ports.Inbox),
		partitioned: make(map[route]bool),
		notify:      make(chan struct{}, 1),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Attach registers the inbound handler for domain, replacing any previous one.
func (f *Fabric) Attach(domain id.Domain, inbox ports.Inbox) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inboxes[domain] = inbox
}

// Sender returns the transport a router of domain sends through. It stamps
// every envelope with the bound source identity.
func (f *Fabric) Sender(domain id.Domain, address id.Address) *Sender {
	return &Sender{fabric: f, domain: domain, address: address}
}

// Partition makes sends from source to destination fail until Heal.
func (f *Fabric) Partition(source, destination id.Domain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partitioned[route{source, destination}] = true
}

func (f *Fabric) Heal(source, destination id.Domain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.partitioned, route{source, destination})
}

// Pending returns the number of queued envelopes.
func (f *Fabric) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// PendingFor returns queued envelopes from source to destination in order.
func (f *Fabric) PendingFor(source, destination id.Domain) []models.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Envelope
	for _, env := range f.queue {
		if env.SourceDomain == source && env.DestinationDomain == destination {
			out = append(out, env)
		}
	}
	return out
}

// Drop discards queued envelopes from source to destination, simulating
// loss. It returns how many were dropped.
func (f *Fabric) Drop(source, destination id.Domain) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.queue)
	f.queue = slices.DeleteFunc(f.queue, func(env models.Envelope) bool {
		return env.SourceDomain == source && env.DestinationDomain == destination
	})
	return before - len(f.queue)
}

// Deliver hands the oldest queued envelope to its destination.
func (f *Fabric) Deliver(ctx context.Context) (models.Receipt, bool) {
	return f.deliverMatching(ctx, func(models.Envelope) bool { return true })
}

// DeliverRoute hands the oldest envelope from source to destination to its
// destination, leaving other routes queued.
func (f *Fabric) DeliverRoute(ctx context.Context, source, destination id.Domain) (models.Receipt, bool) {
	return f.deliverMatching(ctx, func(env models.Envelope) bool {
		return env.SourceDomain == source && env.DestinationDomain == destination
	})
}

// Flush delivers until the queue is empty, including envelopes sent while
// flushing.
func (f *Fabric) Flush(ctx context.Context) []models.Receipt {
	var receipts []models.Receipt
	for {
		receipt, ok := f.Deliver(ctx)
		if !ok {
			return receipts
		}
		receipts = append(receipts, receipt)
	}
}

// Run delivers envelopes as they are sent until ctx is done.
func (f *Fabric) Run(ctx context.Context) error {
	for {
		f.Flush(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.notify:
		}
	}
}

func (f *Fabric) deliverMatching(ctx context.Context, match func(models.Envelope) bool) (models.Receipt, bool) {
	f.mu.Lock()
	idx := slices.IndexFunc(f.queue, match)
	if idx < 0 {
		f.mu.Unlock()
		return models.Receipt{}, false
	}
	env := f.queue[idx]
	f.queue = slices.Delete(f.queue, idx, idx+1)
	inbox := f.inboxes[env.DestinationDomain]
	f.mu.Unlock()

	if inbox == nil {
		f.logger.WarnContext(ctx, "dropping envelope for detached domain",
			"destination_domain", env.DestinationDomain,
			"message_id", env.ID.String(),
		)
		return models.Rejected(env, ErrNoRoute), true
	}
	return inbox.HandleMessage(ctx, env), true
}

func (f *Fabric) enqueue(env models.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partitioned[route{env.SourceDomain, env.DestinationDomain}] {
		return fmt.Errorf("%w: %s -> %s", ErrPartitioned, env.SourceDomain, env.DestinationDomain)
	}
	if _, ok := f.inboxes[env.DestinationDomain]; !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, env.DestinationDomain)
	}
	f.queue = append(f.queue, env)
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return nil
}

// Sender is the ports.Transport of one domain on a Fabric.
type Sender struct {
	fabric  *Fabric
	domain  id.Domain
	address id.Address
}

func (s *Sender) Send(ctx context.Context, env models.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env.SourceDomain = s.domain
	env.SourceAddress = s.address
	return s.fabric.enqueue(env)
}
