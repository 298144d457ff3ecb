package router

import (
	"context"
	"time"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	audit "govnet/pkg/platform/audit"
	"govnet/pkg/requestcontext"
)

// auditEntry is the router-side view of an audit event.
type auditEntry struct {
	event     audit.AuditEvent
	subject   string
	decision  string
	reason    error
	actor     string
	messageID string
}

// emitAudit logs the event and forwards it to the audit publisher.
// Publisher failures are logged and never fail the operation.
func (r *Router) emitAudit(ctx context.Context, e auditEntry) {
	requestID := requestcontext.RequestID(ctx)
	args := []any{
		"event", string(e.event),
		"log_type", "audit",
		"subject", e.subject,
		"decision", e.decision,
	}
	if e.actor != "" {
		args = append(args, "actor", e.actor)
	}
	if e.messageID != "" {
		args = append(args, "message_id", e.messageID)
	}
	if e.reason != nil {
		args = append(args, "reason", e.reason.Error())
	}
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	r.logger.InfoContext(ctx, string(e.event), args...)

	if r.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Category:  e.event.Category(),
		Timestamp: r.clock.Now(),
		Domain:    r.cfg.Domain,
		Subject:   e.subject,
		Action:    string(e.event),
		Decision:  e.decision,
		ActorID:   e.actor,
		MessageID: e.messageID,
		RequestID: requestID,
	}
	if e.reason != nil {
		event.Reason = e.reason.Error()
	}
	if err := r.auditPublisher.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit emit failed",
			"event", string(e.event),
			"error", err,
		)
	}
}

// observe records latency and outcome of a local entry point.
func (r *Router) observe(operation string, start time.Time, err error) {
	r.metrics.ObserveOperation(r.domainLabel, operation, result(err), r.clock.Since(start))
}

func remoteActor(env models.Envelope) string {
	return env.SourceDomain.String() + "/" + env.SourceAddress.String()
}

func domainSubject(d id.Domain) string {
	return "domain:" + d.String()
}
