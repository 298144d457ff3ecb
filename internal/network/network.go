// Package network bootstraps a fully meshed set of governance routers on an
// in-process fabric: one router per domain, every (local, remote) pair
// registered including self, and governorship consolidated on the first
// domain.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"govnet/internal/governance/models"
	"govnet/internal/governance/router"
	"govnet/internal/transport/memory"
	id "govnet/pkg/domain"
)

// RouterSpec describes one router to deploy.
type RouterSpec struct {
	Domain          id.Domain
	Address         id.Address
	Governor        id.Address
	RecoveryManager id.Address
}

// Network is a deployed set of routers sharing one fabric.
type Network struct {
	Fabric  *memory.Fabric
	specs   []RouterSpec
	routers map[id.Domain]*router.Router
}

type options struct {
	delay         time.Duration
	policy        models.RecoveryPolicy
	logger        *slog.Logger
	routerOptions func(id.Domain) []router.Option
}

type Option func(*options)

// WithRecoveryDelay overrides the seven day default timelock.
func WithRecoveryDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

func WithRecoveryPolicy(p models.RecoveryPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRouterOptions supplies per-domain router options (executor, store,
// clock, metrics, audit publisher).
func WithRouterOptions(fn func(id.Domain) []router.Option) Option {
	return func(o *options) {
		o.routerOptions = fn
	}
}

// Deploy builds and wires the routers, then flushes the bootstrap traffic.
// The first spec's domain ends up governing with its Governor as proxy.
func Deploy(ctx context.Context, specs []RouterSpec, opts ...Option) (*Network, error) {
	o := options{
		delay:  models.DefaultRecoveryDelay,
		policy: models.PolicyRearm,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(specs) == 0 {
		return nil, errors.New("at least one router is required")
	}
	seen := make(map[id.Domain]bool, len(specs))
	for _, s := range specs {
		if seen[s.Domain] {
			return nil, fmt.Errorf("domain %s deployed twice", s.Domain)
		}
		seen[s.Domain] = true
	}

	n := &Network{
		Fabric:  memory.NewFabric(memory.WithLogger(o.logger)),
		specs:   slices.Clone(specs),
		routers: make(map[id.Domain]*router.Router, len(specs)),
	}

	for _, s := range specs {
		routerOpts := []router.Option{router.WithLogger(o.logger.With("domain", s.Domain))}
		if o.routerOptions != nil {
			routerOpts = append(routerOpts, o.routerOptions(s.Domain)...)
		}
		r, err := router.New(router.Config{
			Domain:          s.Domain,
			Address:         s.Address,
			Governor:        s.Governor,
			RecoveryManager: s.RecoveryManager,
			RecoveryDelay:   o.delay,
			RecoveryPolicy:  o.policy,
		}, n.Fabric.Sender(s.Domain, s.Address), routerOpts...)
		if err != nil {
			return nil, fmt.Errorf("deploy router %s: %w", s.Domain, err)
		}
		if err := r.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize router %s: %w", s.Domain, err)
		}
		n.Fabric.Attach(s.Domain, r)
		n.routers[s.Domain] = r
	}

	for _, local := range specs {
		for _, remote := range specs {
			if err := n.routers[local.Domain].SetPeer(ctx, local.Governor, remote.Domain, remote.Address); err != nil {
				return nil, fmt.Errorf("register %s on %s: %w", remote.Domain, local.Domain, err)
			}
		}
	}

	first := specs[0]
	for _, s := range specs[1:] {
		broadcast, err := n.routers[s.Domain].TransferGovernor(ctx, s.Governor, first.Domain, first.Governor)
		if err != nil {
			return nil, fmt.Errorf("transfer governor on %s: %w", s.Domain, err)
		}
		if len(broadcast.Failed) > 0 {
			return nil, fmt.Errorf("transfer governor on %s: %d broadcast legs failed", s.Domain, len(broadcast.Failed))
		}
	}

	// Bootstrap broadcasts come from routers that were never the governor
	// anywhere else, so every receiver drops them as stale.
	for _, receipt := range n.Fabric.Flush(ctx) {
		if !receipt.Accepted && !errors.Is(receipt.Reason, models.ErrStaleGovernorMessage) {
			return nil, fmt.Errorf("bootstrap message %s rejected: %w", receipt.MessageID, receipt.Reason)
		}
	}

	if err := n.Verify(); err != nil {
		return nil, err
	}
	return n, nil
}

// Domains lists the deployed domains in deployment order.
func (n *Network) Domains() []id.Domain {
	out := make([]id.Domain, 0, len(n.specs))
	for _, s := range n.specs {
		out = append(out, s.Domain)
	}
	return out
}

// Router returns the router deployed for domain, or nil.
func (n *Network) Router(domain id.Domain) *router.Router {
	return n.routers[domain]
}

// Spec returns the deployment parameters of domain.
func (n *Network) Spec(domain id.Domain) (RouterSpec, bool) {
	for _, s := range n.specs {
		if s.Domain == domain {
			return s, true
		}
	}
	return RouterSpec{}, false
}

// Verify checks that every router knows every peer and that all routers
// agree on one governor domain.
func (n *Network) Verify() error {
	var (
		errs     []error
		governor id.Domain
	)
	for i, s := range n.specs {
		r := n.routers[s.Domain]
		for _, peer := range n.specs {
			addr, err := r.Resolve(peer.Domain)
			if err != nil {
				errs = append(errs, fmt.Errorf("router %s: peer %s: %w", s.Domain, peer.Domain, err))
				continue
			}
			if addr != peer.Address {
				errs = append(errs, fmt.Errorf("router %s: peer %s registered as %s", s.Domain, peer.Domain, addr))
			}
		}
		g, err := r.GovernorDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("router %s: %w", s.Domain, err))
			continue
		}
		if i == 0 {
			governor = g
		} else if g != governor {
			errs = append(errs, fmt.Errorf("router %s recognises governor %s, router %s recognises %s",
				s.Domain, g, n.specs[0].Domain, governor))
		}
	}
	return errors.Join(errs...)
}
