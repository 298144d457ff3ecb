// Package publisher emits audit events to an audit.Store.
//
// In sync mode Emit writes through to the store. In async mode events go to
// a bounded ring buffer drained by a background goroutine, so a slow or
// failing store never stalls the router; Close drains what is left.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "govnet/pkg/domain"
	audit "govnet/pkg/platform/audit"
)

const drainBatch = 64

type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	buffer   *RingBuffer
	wake     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	closeOne sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given capacity.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(capacity)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wake = make(chan struct{}, 1)
		p.done = make(chan struct{})
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an event. Missing timestamp and category are filled in.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	p.buffer.Enqueue(event)
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, domain id.Domain) ([]audit.Event, error) {
	return p.store.ListByDomain(ctx, domain)
}

// Dropped reports events lost to buffer overflow in async mode.
func (p *Publisher) Dropped() int64 {
	if p.buffer == nil {
		return 0
	}
	return p.buffer.Dropped()
}

// Close stops the background drainer after flushing the buffer.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.closeOne.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	// Drained events outlive the request that emitted them.
	ctx := context.Background()
	for {
		batch := p.buffer.DequeueBatch(drainBatch)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event); err != nil {
				p.logger.Warn("audit append failed",
					"action", event.Action,
					"domain", event.Domain,
					"error", err,
				)
			}
		}
	}
}
