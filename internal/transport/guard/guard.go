// Package guard wraps a transport with one circuit breaker per destination
// domain. While a destination's circuit is open, sends to it fail fast
// except for one probe per cooldown.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"govnet/internal/governance/models"
	"govnet/internal/governance/ports"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/circuit"
	"govnet/pkg/platform/sentinel"
)

var ErrCircuitOpen = errors.New("circuit open")

type destination struct {
	breaker   *circuit.Breaker
	lastProbe time.Time
}

type Transport struct {
	next     ports.Transport
	logger   *slog.Logger
	clock    clock.Clock
	cooldown time.Duration
	opts     []circuit.Option

	mu           sync.Mutex
	destinations map[id.Domain]*destination
}

type Option func(*Transport)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func WithClock(c clock.Clock) Option {
	return func(t *Transport) {
		t.clock = c
	}
}

// WithCooldown sets how long an open destination refuses sends before the
// next probe is let through.
func WithCooldown(d time.Duration) Option {
	return func(t *Transport) {
		t.cooldown = d
	}
}

func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(t *Transport) {
		t.opts = append(t.opts, opts...)
	}
}

func New(next ports.Transport, opts ...Option) *Transport {
	t := &Transport{
		next:         next,
		logger:       slog.Default(),
		clock:        clock.New(),
		cooldown:     5 * time.Second,
		destinations: make(map[id.Domain]*destination),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Send(ctx context.Context, env models.Envelope) error {
	dest, ok := t.admit(env.DestinationDomain)
	if !ok {
		return fmt.Errorf("%w: %w to %s", sentinel.ErrUnavailable, ErrCircuitOpen, env.DestinationDomain)
	}

	err := t.next.Send(ctx, env)
	if err != nil {
		if _, change := dest.breaker.RecordFailure(); change.Opened {
			t.mu.Lock()
			dest.lastProbe = t.clock.Now()
			t.mu.Unlock()
			t.logger.WarnContext(ctx, "transport circuit opened",
				"destination_domain", env.DestinationDomain,
				"error", err,
			)
		}
		return err
	}
	if _, change := dest.breaker.RecordSuccess(); change.Closed {
		t.logger.InfoContext(ctx, "transport circuit closed",
			"destination_domain", env.DestinationDomain,
		)
	}
	return nil
}

// Open reports whether the circuit of destination is open.
func (t *Transport) Open(destination id.Domain) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	dest, ok := t.destinations[destination]
	return ok && dest.breaker.IsOpen()
}

func (t *Transport) admit(domain id.Domain) (*destination, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dest, ok := t.destinations[domain]
	if !ok {
		dest = &destination{breaker: circuit.New("transport:"+domain.String(), t.opts...)}
		t.destinations[domain] = dest
	}
	if !dest.breaker.IsOpen() {
		return dest, true
	}
	now := t.clock.Now()
	if now.Sub(dest.lastProbe) < t.cooldown {
		return dest, false
	}
	dest.lastProbe = now
	return dest, true
}
