package audit

import (
	"context"
	"time"

	id "govnet/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers authority changes that must be reconstructable
	// after the fact: governor transfers, recovery execution, peer changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers refused actions and suspicious inbound traffic:
	// unauthorized calls, stale governor messages, recovery attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the router to capture authority-relevant actions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Domain is the router that observed the event.
	Domain id.Domain
	// Subject names what the event is about (a peer domain, an address).
	Subject  string
	Action   string
	Decision string
	Reason   string
	// ActorID is the caller address for local calls or "<domain>/<address>"
	// for inbound messages.
	ActorID   string
	MessageID string
	RequestID string
}

type AuditEvent string

const (
	EventPeerSet                    AuditEvent = "peer_set"
	EventGovernorTransferred        AuditEvent = "governor_transferred"
	EventGovernorMessageAccepted    AuditEvent = "governor_message_accepted"
	EventGovernorMessageRejected    AuditEvent = "governor_message_rejected"
	EventGovernorCallExecuted       AuditEvent = "governor_call_executed"
	EventGovernorCallSent           AuditEvent = "governor_call_sent"
	EventBroadcastSendFailed        AuditEvent = "broadcast_send_failed"
	EventLocalCallDenied            AuditEvent = "local_call_denied"
	EventRecoveryInitiated          AuditEvent = "recovery_initiated"
	EventRecoveryCancelled          AuditEvent = "recovery_cancelled"
	EventRecoveryExecuted           AuditEvent = "recovery_executed"
	EventRecoveryReleased           AuditEvent = "recovery_released"
	EventRecoveryManagerTransferred AuditEvent = "recovery_manager_transferred"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPeerSet:                    CategoryCompliance,
	EventGovernorTransferred:        CategoryCompliance,
	EventRecoveryExecuted:           CategoryCompliance,
	EventRecoveryReleased:           CategoryCompliance,
	EventRecoveryManagerTransferred: CategoryCompliance,

	EventGovernorMessageRejected: CategorySecurity,
	EventLocalCallDenied:         CategorySecurity,
	EventRecoveryInitiated:       CategorySecurity,
	EventRecoveryCancelled:       CategorySecurity,
	EventBroadcastSendFailed:     CategorySecurity,

	EventGovernorMessageAccepted: CategoryOperations,
	EventGovernorCallExecuted:    CategoryOperations,
	EventGovernorCallSent:        CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDomain(ctx context.Context, domain id.Domain) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
