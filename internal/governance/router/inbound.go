package router

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"govnet/internal/governance/models"
	audit "govnet/pkg/platform/audit"
)

// HandleMessage is the single inbound entry point. Envelopes are checked in
// this order: addressed here, well formed, sent by the registered peer
// router, sender is the governor. While a recovery is executed only
// SetGovernor is applied so the recorded governor domain keeps tracking the
// network; Call and CancelRecovery are refused. Rejections never escape as
// errors; they are logged, counted, audited and reported in the receipt.
func (r *Router) HandleMessage(ctx context.Context, env models.Envelope) models.Receipt {
	ctx, span := r.startSpan(ctx, "router.HandleMessage",
		attribute.Int64("govnet.source_domain", int64(env.SourceDomain)),
		attribute.String("govnet.action", env.Action.Kind.String()),
		attribute.String("govnet.message_id", env.ID.String()),
	)

	r.mu.Lock()
	defer r.mu.Unlock()

	receipt := r.handle(ctx, env)
	if receipt.Accepted {
		r.metrics.IncrementInbound(r.domainLabel, env.Action.Kind.String(), "accepted")
		r.emitAudit(ctx, auditEntry{
			event:     audit.EventGovernorMessageAccepted,
			subject:   env.Action.Kind.String(),
			decision:  "accepted",
			actor:     remoteActor(env),
			messageID: env.ID.String(),
		})
	} else {
		r.metrics.IncrementInbound(r.domainLabel, env.Action.Kind.String(), "rejected")
		r.logger.WarnContext(ctx, "governance message rejected",
			"source_domain", env.SourceDomain,
			"message_id", env.ID.String(),
			"action", env.Action.Kind.String(),
			"reason", receipt.Reason,
		)
		r.emitAudit(ctx, auditEntry{
			event:     audit.EventGovernorMessageRejected,
			subject:   env.Action.Kind.String(),
			decision:  "rejected",
			reason:    receipt.Reason,
			actor:     remoteActor(env),
			messageID: env.ID.String(),
		})
	}
	endSpan(span, receipt.Reason)
	return receipt
}

// handle applies env to the router; callers hold r.mu.
func (r *Router) handle(ctx context.Context, env models.Envelope) models.Receipt {
	state, err := r.current()
	if err != nil {
		return models.Rejected(env, err)
	}
	if env.DestinationDomain != r.cfg.Domain ||
		(!env.DestinationAddress.IsZero() && env.DestinationAddress != r.cfg.Address) {
		return models.Rejected(env, fmt.Errorf("%w: addressed to %s", models.ErrMisrouted, env.DestinationDomain))
	}
	if err := env.Action.Validate(); err != nil {
		return models.Rejected(env, err)
	}
	peer, err := state.Peers.Resolve(env.SourceDomain)
	if err != nil {
		return models.Rejected(env, err)
	}
	if peer != env.SourceAddress {
		return models.Rejected(env, fmt.Errorf("%w: sender is not the registered router of %s", models.ErrUnauthorized, env.SourceDomain))
	}
	if env.SourceDomain != state.Authority.GovernorDomain {
		if env.Action.Kind == models.ActionSetGovernor {
			return models.Rejected(env, fmt.Errorf("%w: %s is not the governor domain", models.ErrStaleGovernorMessage, env.SourceDomain))
		}
		return models.Rejected(env, fmt.Errorf("%w: %s is not the governor domain", models.ErrUnauthorized, env.SourceDomain))
	}
	if state.Recovery.Executed() && env.Action.Kind != models.ActionSetGovernor {
		return models.Rejected(env, models.ErrRecoveryActive)
	}

	switch env.Action.Kind {
	case models.ActionSetGovernor:
		return r.applySetGovernor(ctx, state, env)
	case models.ActionCall:
		if err := r.runCalls(ctx, env.Action.Calls); err != nil {
			return models.Rejected(env, err)
		}
		return models.Accepted(env)
	case models.ActionCancelRecovery:
		next := state.Clone()
		if err := next.Recovery.Cancel(); err != nil {
			return models.Rejected(env, err)
		}
		if err := r.commit(ctx, next); err != nil {
			return models.Rejected(env, err)
		}
		r.emitAudit(ctx, auditEntry{
			event:     audit.EventRecoveryCancelled,
			subject:   "recovery",
			decision:  string(next.Recovery.Status),
			actor:     remoteActor(env),
			messageID: env.ID.String(),
		})
		return models.Accepted(env)
	default:
		return models.Rejected(env, models.ErrInvalidAction)
	}
}

func (r *Router) applySetGovernor(ctx context.Context, state *models.RouterState, env models.Envelope) models.Receipt {
	previous := state.Authority.GovernorDomain
	next := state.Clone()
	next.Authority.Transfer(env.Action.NewGovernorDomain, env.Action.NewGovernorAddress)
	if err := r.commit(ctx, next); err != nil {
		return models.Rejected(env, err)
	}
	r.metrics.IncrementGovernorTransfer(r.domainLabel, "message")
	r.emitAudit(ctx, auditEntry{
		event:     audit.EventGovernorTransferred,
		subject:   domainSubject(env.Action.NewGovernorDomain),
		decision:  fmt.Sprintf("%s -> %s", previous, env.Action.NewGovernorDomain),
		actor:     remoteActor(env),
		messageID: env.ID.String(),
	})
	return models.Accepted(env)
}
