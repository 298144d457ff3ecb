package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	id "govnet/pkg/domain"
)

// ActionKind tags the governance action carried by an envelope.
type ActionKind uint8

const (
	ActionSetGovernor ActionKind = iota + 1
	ActionCall
	ActionCancelRecovery
)

func (k ActionKind) String() string {
	switch k {
	case ActionSetGovernor:
		return "set_governor"
	case ActionCall:
		return "call"
	case ActionCancelRecovery:
		return "cancel_recovery"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Call is one privileged invocation of a local target.
type Call struct {
	Target id.Address `json:"target"`
	Data   []byte     `json:"data"`
}

// Action is the payload of a cross-domain governance message.
type Action struct {
	Kind ActionKind `json:"kind"`
	// NewGovernorDomain and NewGovernorAddress are set for ActionSetGovernor.
	NewGovernorDomain  id.Domain  `json:"new_governor_domain,omitempty"`
	NewGovernorAddress id.Address `json:"new_governor_address"`
	// Calls is set for ActionCall.
	Calls []Call `json:"calls,omitempty"`
}

func SetGovernorAction(domain id.Domain, governor id.Address) Action {
	return Action{Kind: ActionSetGovernor, NewGovernorDomain: domain, NewGovernorAddress: governor}
}

func CallAction(calls ...Call) Action {
	return Action{Kind: ActionCall, Calls: calls}
}

func CancelRecoveryAction() Action {
	return Action{Kind: ActionCancelRecovery}
}

// Validate checks the shape of the action, not its authorization.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionSetGovernor:
		if a.NewGovernorAddress.IsZero() {
			return fmt.Errorf("%w: set_governor needs a governor address", ErrInvalidAction)
		}
	case ActionCall:
		if len(a.Calls) == 0 {
			return fmt.Errorf("%w: call needs at least one call", ErrInvalidAction)
		}
		for i, c := range a.Calls {
			if c.Target.IsZero() {
				return fmt.Errorf("%w: call %d has no target", ErrInvalidAction, i)
			}
		}
	case ActionCancelRecovery:
	default:
		return fmt.Errorf("%w: kind %s", ErrInvalidAction, a.Kind)
	}
	return nil
}

// Envelope is an authenticated cross-domain message. The transport stamps
// SourceDomain and SourceAddress; routers trust them unconditionally.
type Envelope struct {
	ID                 uuid.UUID  `json:"id"`
	SourceDomain       id.Domain  `json:"source_domain"`
	SourceAddress      id.Address `json:"source_address"`
	DestinationDomain  id.Domain  `json:"destination_domain"`
	DestinationAddress id.Address `json:"destination_address"`
	Action             Action     `json:"action"`
	SentAt             time.Time  `json:"sent_at"`
}

// Receipt reports how a router disposed of an inbound envelope. Rejections
// are absorbed: they never propagate back to the transport as failures.
type Receipt struct {
	MessageID uuid.UUID
	Kind      ActionKind
	Accepted  bool
	Reason    error
}

func Accepted(env Envelope) Receipt {
	return Receipt{MessageID: env.ID, Kind: env.Action.Kind, Accepted: true}
}

func Rejected(env Envelope, reason error) Receipt {
	return Receipt{MessageID: env.ID, Kind: env.Action.Kind, Reason: reason}
}
