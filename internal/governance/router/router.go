// Package router implements the per-domain governance router: the authority
// model, the peer registry, the governor-transfer broadcast protocol and the
// recovery escape hatch.
//
// A Router serialises every local call and inbound message behind one
// mutex. Outbound envelopes are handed to the transport while the lock is
// held, so per-destination send order equals commit order.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"govnet/internal/governance/executor"
	"govnet/internal/governance/metrics"
	"govnet/internal/governance/models"
	"govnet/internal/governance/ports"
	id "govnet/pkg/domain"
	dErrors "govnet/pkg/domain-errors"
	"govnet/pkg/platform/sentinel"
)

const tracerName = "govnet/internal/governance/router"

// Config holds the deployment parameters of one router.
type Config struct {
	Domain  id.Domain
	Address id.Address
	// Governor is the initial local governor proxy.
	Governor        id.Address
	RecoveryManager id.Address
	RecoveryDelay   time.Duration
	RecoveryPolicy  models.RecoveryPolicy
}

// Validate checks the deployment parameters.
func (c Config) Validate() error {
	if c.Address.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "router address is required")
	}
	if c.Governor.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "governor address is required")
	}
	if c.RecoveryManager.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recovery manager is required")
	}
	if c.RecoveryDelay < 0 {
		return dErrors.New(dErrors.CodeValidation, "recovery delay must not be negative")
	}
	if _, err := models.ParseRecoveryPolicy(string(c.RecoveryPolicy)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid recovery policy")
	}
	return nil
}

// Router is the governance agent of a single domain.
type Router struct {
	cfg            Config
	transport      ports.Transport
	store          ports.Store
	executor       ports.Executor
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	clock          clock.Clock
	tracer         trace.Tracer
	domainLabel    string

	mu    sync.Mutex
	state *models.RouterState
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(r *Router) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithStore persists every committed state change.
func WithStore(store ports.Store) Option {
	return func(r *Router) {
		r.store = store
	}
}

// WithExecutor sets the dispatcher for local governance calls.
func WithExecutor(exec ports.Executor) Option {
	return func(r *Router) {
		r.executor = exec
	}
}

// WithClock sets the clock the recovery delay is measured against.
func WithClock(c clock.Clock) Option {
	return func(r *Router) {
		r.clock = c
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = tracer
	}
}

// New constructs a Router. The router is unusable until Initialize.
func New(cfg Config, transport ports.Transport, opts ...Option) (*Router, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.RecoveryPolicy == "" {
		cfg.RecoveryPolicy = models.PolicyRearm
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		cfg:         cfg,
		transport:   transport,
		logger:      slog.Default(),
		clock:       clock.New(),
		domainLabel: strconv.FormatUint(uint64(cfg.Domain), 10),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = executor.New(executor.WithLogger(r.logger))
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	r.logger = r.logger.With("domain", r.domainLabel)
	return r, nil
}

// Domain returns the domain this router serves.
func (r *Router) Domain() id.Domain {
	return r.cfg.Domain
}

// Address returns this router's own address.
func (r *Router) Address() id.Address {
	return r.cfg.Address
}

// Initialize restores the persisted snapshot for this domain or, when none
// exists, persists the initial self-governing state.
func (r *Router) Initialize(ctx context.Context) error {
	ctx, span := r.startSpan(ctx, "router.Initialize")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nil {
		return dErrors.New(dErrors.CodeConflict, "router already initialized")
	}

	if r.store != nil {
		existing, err := r.store.Load(ctx, r.cfg.Domain)
		switch {
		case err == nil:
			if existing.Address != r.cfg.Address {
				return dErrors.New(dErrors.CodeInvariantViolation,
					fmt.Sprintf("stored router address %s does not match configured %s", existing.Address, r.cfg.Address))
			}
			if err := existing.Validate(); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored router state is invalid")
			}
			r.state = existing
			r.publishGauges()
			r.logger.InfoContext(ctx, "router state restored",
				"governor_domain", existing.Authority.GovernorDomain,
				"peers", existing.Peers.Len(),
				"recovery_status", existing.Recovery.Status,
			)
			return nil
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load router state")
		}
	}

	recovery, err := models.NewRecoveryTimelock(r.cfg.RecoveryManager, r.cfg.RecoveryDelay, r.cfg.RecoveryPolicy)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid recovery parameters")
	}
	initial := &models.RouterState{
		Domain:    r.cfg.Domain,
		Address:   r.cfg.Address,
		Authority: models.NewAuthorityState(r.cfg.Domain, r.cfg.Governor),
		Peers:     models.NewAddressRegistry(),
		Recovery:  recovery,
	}
	if err := r.commit(ctx, initial); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "router initialized",
		"address", r.cfg.Address.String(),
		"governor", r.cfg.Governor.String(),
		"recovery_delay", r.cfg.RecoveryDelay.String(),
		"recovery_policy", string(r.cfg.RecoveryPolicy),
	)
	return nil
}

// State returns a copy of the current snapshot.
func (r *Router) State() (*models.RouterState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil, translate(models.ErrNotInitialized, "router state unavailable")
	}
	return r.state.Clone(), nil
}

// GovernorDomain returns the domain this router currently recognises as governor.
func (r *Router) GovernorDomain() (id.Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return 0, translate(models.ErrNotInitialized, "governor domain unavailable")
	}
	return r.state.Authority.GovernorDomain, nil
}

// IsGovernor reports whether (domain, address) is the governor as seen here.
func (r *Router) IsGovernor(domain id.Domain, address id.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return false
	}
	return r.state.Authority.IsGovernor(domain, address)
}

// Resolve returns the registered peer router for domain.
func (r *Router) Resolve(domain id.Domain) (id.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return id.ZeroAddress, translate(models.ErrNotInitialized, "registry unavailable")
	}
	addr, err := r.state.Peers.Resolve(domain)
	if err != nil {
		return id.ZeroAddress, translate(err, "resolve peer")
	}
	return addr, nil
}

// current returns the live state; callers hold r.mu.
func (r *Router) current() (*models.RouterState, error) {
	if r.state == nil {
		return nil, models.ErrNotInitialized
	}
	return r.state, nil
}

// commit persists next and makes it current. On a store failure the
// current state is left untouched.
func (r *Router) commit(ctx context.Context, next *models.RouterState) error {
	next.UpdatedAt = r.clock.Now()
	if r.store != nil {
		if err := r.store.Save(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist router state")
		}
	}
	r.state = next
	r.publishGauges()
	return nil
}

func (r *Router) publishGauges() {
	r.metrics.SetGovernorDomain(r.domainLabel, uint32(r.state.Authority.GovernorDomain))
	r.metrics.SetRecoveryActive(r.domainLabel, r.state.Recovery.Executed())
}

// envelope addresses action to the peer router of destination.
func (r *Router) envelope(destination id.Domain, destinationAddress id.Address, action models.Action) models.Envelope {
	return models.Envelope{
		ID:                 uuid.New(),
		SourceDomain:       r.cfg.Domain,
		SourceAddress:      r.cfg.Address,
		DestinationDomain:  destination,
		DestinationAddress: destinationAddress,
		Action:             action,
		SentAt:             r.clock.Now(),
	}
}

func (r *Router) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Int64("govnet.domain", int64(r.cfg.Domain)))
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
