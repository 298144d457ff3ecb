// Package ports declares the collaborators a governance router depends on.
// Adapters live in internal/transport, internal/governance/store and
// internal/governance/executor.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	audit "govnet/pkg/platform/audit"
)

// Transport delivers envelopes to the destination router. Delivery is
// asynchronous and FIFO per (source, destination) pair; a nil error means
// the transport accepted the envelope, not that it arrived. The transport
// is trusted to stamp the source identity.
type Transport interface {
	Send(ctx context.Context, env models.Envelope) error
}

// Inbox is the inbound side of a router. Rejections are reported in the
// receipt, never as a transport failure.
type Inbox interface {
	HandleMessage(ctx context.Context, env models.Envelope) models.Receipt
}

// Executor performs a privileged local call on behalf of the governor.
type Executor interface {
	Execute(ctx context.Context, call models.Call) error
}

// Store persists router snapshots. Load returns sentinel.ErrNotFound when
// nothing was saved for the domain.
type Store interface {
	Load(ctx context.Context, domain id.Domain) (*models.RouterState, error)
	Save(ctx context.Context, state *models.RouterState) error
}

// AuditPublisher records authority-relevant events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
