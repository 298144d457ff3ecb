package router

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	audit "govnet/pkg/platform/audit"
)

// SendFailure records a broadcast leg the transport refused.
type SendFailure struct {
	Domain id.Domain
	Err    error
}

// Broadcast reports the outbound legs of a governor transfer. Failed legs
// are not retried; the transfer stays committed locally.
type Broadcast struct {
	Sent   []id.Domain
	Failed []SendFailure
}

// authorizeLocal checks local authority: the recovery manager while a
// recovery is executed, otherwise the governor proxy of a self-governing
// domain.
func authorizeLocal(state *models.RouterState, caller id.Address) error {
	if state.Recovery.Executed() {
		if caller == state.Recovery.Manager {
			return nil
		}
		return fmt.Errorf("%w: recovery manager holds local authority", models.ErrUnauthorized)
	}
	if state.Authority.IsGovernor(state.Domain, caller) {
		return nil
	}
	return models.ErrUnauthorized
}

// SetPeer registers (or overwrites) the router address of domain.
func (r *Router) SetPeer(ctx context.Context, caller id.Address, domain id.Domain, address id.Address) (err error) {
	ctx, span := r.startSpan(ctx, "router.SetPeer", attribute.Int64("govnet.peer_domain", int64(domain)))
	start := r.clock.Now()
	defer func() {
		r.observe("set_peer", start, err)
		endSpan(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.current()
	if err != nil {
		return translate(err, "set peer")
	}
	if err := authorizeLocal(state, caller); err != nil {
		r.denied(ctx, "set_peer", caller, err)
		return translate(err, "set peer")
	}
	next := state.Clone()
	if err := next.Peers.Set(domain, address); err != nil {
		return translate(err, "set peer")
	}
	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.emitAudit(ctx, auditEntry{
		event:    audit.EventPeerSet,
		subject:  domainSubject(domain),
		decision: address.String(),
		actor:    caller.String(),
	})
	return nil
}

// TransferGovernor moves governorship to domain with governor as its proxy.
// It is refused while a recovery is executed. A local transfer only swaps
// the proxy. A remote transfer commits here
// first, then broadcasts SetGovernor to every registered peer except this
// domain; failed legs are reported, never rolled back.
func (r *Router) TransferGovernor(ctx context.Context, caller id.Address, domain id.Domain, governor id.Address) (_ Broadcast, err error) {
	ctx, span := r.startSpan(ctx, "router.TransferGovernor", attribute.Int64("govnet.new_governor_domain", int64(domain)))
	start := r.clock.Now()
	defer func() {
		r.observe("transfer_governor", start, err)
		endSpan(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.current()
	if err != nil {
		return Broadcast{}, translate(err, "transfer governor")
	}
	if err := authorizeLocal(state, caller); err != nil {
		r.denied(ctx, "transfer_governor", caller, err)
		return Broadcast{}, translate(err, "transfer governor")
	}
	if state.Recovery.Executed() {
		return Broadcast{}, translate(models.ErrRecoveryActive, "transfer governor refused")
	}
	if governor.IsZero() {
		return Broadcast{}, translate(fmt.Errorf("governor: %w", models.ErrInvalidAddress), "transfer governor")
	}
	if domain != r.cfg.Domain {
		if _, err := state.Peers.Resolve(domain); err != nil {
			return Broadcast{}, translate(err, "transfer governor")
		}
	}

	previous := state.Authority.GovernorDomain
	next := state.Clone()
	next.Authority.Transfer(domain, governor)
	if err := r.commit(ctx, next); err != nil {
		return Broadcast{}, err
	}
	r.metrics.IncrementGovernorTransfer(r.domainLabel, "local")
	r.emitAudit(ctx, auditEntry{
		event:    audit.EventGovernorTransferred,
		subject:  domainSubject(domain),
		decision: fmt.Sprintf("%s -> %s", previous, domain),
		actor:    caller.String(),
	})

	if domain == r.cfg.Domain {
		return Broadcast{}, nil
	}
	return r.broadcast(ctx, next, models.SetGovernorAction(domain, governor)), nil
}

// broadcast sends action to every registered peer except this domain, in
// ascending domain order. Callers hold r.mu.
func (r *Router) broadcast(ctx context.Context, state *models.RouterState, action models.Action) Broadcast {
	var out Broadcast
	for _, domain := range state.Peers.Domains() {
		if domain == r.cfg.Domain {
			continue
		}
		peer, _ := state.Peers.Resolve(domain)
		env := r.envelope(domain, peer, action)
		if err := r.transport.Send(ctx, env); err != nil {
			out.Failed = append(out.Failed, SendFailure{Domain: domain, Err: err})
			r.metrics.IncrementOutbound(r.domainLabel, action.Kind.String(), "failed")
			r.logger.WarnContext(ctx, "governance broadcast send failed",
				"destination_domain", domain,
				"message_id", env.ID.String(),
				"action", action.Kind.String(),
				"error", err,
			)
			r.emitAudit(ctx, auditEntry{
				event:     audit.EventBroadcastSendFailed,
				subject:   domainSubject(domain),
				decision:  "failed",
				reason:    err,
				messageID: env.ID.String(),
			})
			continue
		}
		out.Sent = append(out.Sent, domain)
		r.metrics.IncrementOutbound(r.domainLabel, action.Kind.String(), "sent")
	}
	return out
}

// CallAsGovernor runs calls on targetDomain with governor authority. Local
// calls execute in order and stop at the first failure; effects of earlier
// calls persist. Remote calls are sent as one Call action to the peer
// router and are refused while a local recovery is executed.
func (r *Router) CallAsGovernor(ctx context.Context, caller id.Address, targetDomain id.Domain, calls ...models.Call) (err error) {
	ctx, span := r.startSpan(ctx, "router.CallAsGovernor",
		attribute.Int64("govnet.target_domain", int64(targetDomain)),
		attribute.Int("govnet.calls", len(calls)),
	)
	start := r.clock.Now()
	defer func() {
		r.observe("call_as_governor", start, err)
		endSpan(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.current()
	if err != nil {
		return translate(err, "call as governor")
	}
	if err := authorizeLocal(state, caller); err != nil {
		r.denied(ctx, "call_as_governor", caller, err)
		return translate(err, "call as governor")
	}
	action := models.CallAction(calls...)
	if err := action.Validate(); err != nil {
		return translate(err, "call as governor")
	}

	if targetDomain == r.cfg.Domain {
		if err := r.runCalls(ctx, calls); err != nil {
			return translate(err, "call as governor")
		}
		r.emitAudit(ctx, auditEntry{
			event:    audit.EventGovernorCallExecuted,
			subject:  domainSubject(targetDomain),
			decision: fmt.Sprintf("%d calls", len(calls)),
			actor:    caller.String(),
		})
		return nil
	}

	if state.Recovery.Executed() {
		return translate(models.ErrRecoveryActive, "remote call refused")
	}
	if err := r.send(ctx, state, targetDomain, action); err != nil {
		return err
	}
	r.emitAudit(ctx, auditEntry{
		event:    audit.EventGovernorCallSent,
		subject:  domainSubject(targetDomain),
		decision: fmt.Sprintf("%d calls", len(calls)),
		actor:    caller.String(),
	})
	return nil
}

// send delivers action to one registered peer. Callers hold r.mu.
func (r *Router) send(ctx context.Context, state *models.RouterState, domain id.Domain, action models.Action) error {
	peer, err := state.Peers.Resolve(domain)
	if err != nil {
		return translate(err, "resolve peer")
	}
	env := r.envelope(domain, peer, action)
	if err := r.transport.Send(ctx, env); err != nil {
		r.metrics.IncrementOutbound(r.domainLabel, action.Kind.String(), "failed")
		return translateUnavailable(err, "send governance message")
	}
	r.metrics.IncrementOutbound(r.domainLabel, action.Kind.String(), "sent")
	return nil
}

// runCalls hands calls to the executor in order and stops at the first
// failure. A call addressed to this router is an ordinary executor target;
// router state only changes through the local operations.
func (r *Router) runCalls(ctx context.Context, calls []models.Call) error {
	for i, call := range calls {
		if err := r.executor.Execute(ctx, call); err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
	}
	return nil
}

// InitiateRecovery arms the recovery timelock. Manager only.
func (r *Router) InitiateRecovery(ctx context.Context, caller id.Address) (err error) {
	return r.recoveryOp(ctx, "initiate_recovery", caller, audit.EventRecoveryInitiated, func(next *models.RouterState) error {
		return next.Recovery.Initiate(caller, r.clock.Now())
	})
}

// CancelRecovery disarms a pending recovery. Local governor proxy only.
func (r *Router) CancelRecovery(ctx context.Context, caller id.Address) (err error) {
	return r.recoveryOp(ctx, "cancel_recovery", caller, audit.EventRecoveryCancelled, func(next *models.RouterState) error {
		if !next.Authority.IsGovernor(r.cfg.Domain, caller) {
			return models.ErrUnauthorized
		}
		return next.Recovery.Cancel()
	})
}

// ExecuteRecovery hands local authority to the manager once the delay has
// elapsed since InitiateRecovery.
func (r *Router) ExecuteRecovery(ctx context.Context, caller id.Address) (err error) {
	return r.recoveryOp(ctx, "execute_recovery", caller, audit.EventRecoveryExecuted, func(next *models.RouterState) error {
		return next.Recovery.Execute(caller, r.clock.Now())
	})
}

// ReleaseRecovery returns local authority to the governor. Under the
// single_use policy the timelock cannot be armed again.
func (r *Router) ReleaseRecovery(ctx context.Context, caller id.Address) (err error) {
	return r.recoveryOp(ctx, "release_recovery", caller, audit.EventRecoveryReleased, func(next *models.RouterState) error {
		return next.Recovery.Release(caller)
	})
}

// TransferRecoveryManager hands the manager role to manager.
func (r *Router) TransferRecoveryManager(ctx context.Context, caller, manager id.Address) (err error) {
	return r.recoveryOp(ctx, "transfer_recovery_manager", caller, audit.EventRecoveryManagerTransferred, func(next *models.RouterState) error {
		return next.Recovery.TransferManager(caller, manager)
	})
}

func (r *Router) recoveryOp(ctx context.Context, operation string, caller id.Address, event audit.AuditEvent, apply func(next *models.RouterState) error) (err error) {
	ctx, span := r.startSpan(ctx, "router."+operation)
	start := r.clock.Now()
	defer func() {
		r.observe(operation, start, err)
		endSpan(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.current()
	if err != nil {
		return translate(err, operation)
	}
	next := state.Clone()
	if err := apply(next); err != nil {
		r.emitAudit(ctx, auditEntry{
			event:    event,
			subject:  "recovery",
			decision: "denied",
			reason:   err,
			actor:    caller.String(),
		})
		return translate(err, operation)
	}
	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.emitAudit(ctx, auditEntry{
		event:    event,
		subject:  "recovery",
		decision: string(next.Recovery.Status),
		actor:    caller.String(),
	})
	return nil
}

// RequestRecoveryCancel asks the router of domain to cancel its pending
// recovery. It needs local governor authority here and the target must
// recognise this domain as governor. For the local domain it cancels
// directly.
func (r *Router) RequestRecoveryCancel(ctx context.Context, caller id.Address, domain id.Domain) (err error) {
	if domain == r.cfg.Domain {
		return r.CancelRecovery(ctx, caller)
	}

	ctx, span := r.startSpan(ctx, "router.RequestRecoveryCancel", attribute.Int64("govnet.target_domain", int64(domain)))
	start := r.clock.Now()
	defer func() {
		r.observe("request_recovery_cancel", start, err)
		endSpan(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.current()
	if err != nil {
		return translate(err, "request recovery cancel")
	}
	if err := authorizeLocal(state, caller); err != nil {
		r.denied(ctx, "request_recovery_cancel", caller, err)
		return translate(err, "request recovery cancel")
	}
	if state.Recovery.Executed() {
		return translate(models.ErrRecoveryActive, "remote cancel refused")
	}
	return r.send(ctx, state, domain, models.CancelRecoveryAction())
}

func (r *Router) denied(ctx context.Context, operation string, caller id.Address, reason error) {
	r.emitAudit(ctx, auditEntry{
		event:    audit.EventLocalCallDenied,
		subject:  operation,
		decision: "denied",
		reason:   reason,
		actor:    caller.String(),
	})
}
