// Package executor dispatches privileged governance calls to local targets.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
)

// Handler runs one call against a target. data is opaque to the router.
type Handler func(ctx context.Context, data []byte) error

// Registry maps target addresses to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[id.Address]Handler
	logger   *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[id.Address]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds target to h. A target can only be bound once.
func (r *Registry) Register(target id.Address, h Handler) error {
	if target.IsZero() {
		return fmt.Errorf("register target: %w", models.ErrInvalidAddress)
	}
	if h == nil {
		return fmt.Errorf("register target %s: handler is required", target)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[target]; exists {
		return fmt.Errorf("register target %s: already registered", target)
	}
	r.handlers[target] = h
	return nil
}

// Execute runs call. Failures wrap models.ErrCallFailed.
func (r *Registry) Execute(ctx context.Context, call models.Call) error {
	r.mu.RLock()
	h, ok := r.handlers[call.Target]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no handler for target %s", models.ErrCallFailed, call.Target)
	}
	if err := h(ctx, call.Data); err != nil {
		r.logger.WarnContext(ctx, "governance call failed",
			"target", call.Target.String(),
			"error", err,
		)
		return fmt.Errorf("%w: target %s: %w", models.ErrCallFailed, call.Target, err)
	}
	return nil
}

// Targets returns the registered target addresses.
func (r *Registry) Targets() []id.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]id.Address, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
