package models

import (
	"fmt"
	"time"

	id "govnet/pkg/domain"
)

// DefaultRecoveryDelay is the timelock used by network bootstrap.
const DefaultRecoveryDelay = 7 * 24 * time.Hour

// RecoveryStatus is the state of the local recovery escape hatch.
type RecoveryStatus string

const (
	RecoveryIdle     RecoveryStatus = "idle"
	RecoveryPending  RecoveryStatus = "pending"
	RecoveryExecuted RecoveryStatus = "executed"
)

// RecoveryPolicy decides what happens once an executed recovery is released.
type RecoveryPolicy string

const (
	// PolicyRearm returns the timelock to idle on release; the manager may
	// start a new episode later.
	PolicyRearm RecoveryPolicy = "rearm"
	// PolicySingleUse consumes the timelock on release; no further episode
	// can be initiated.
	PolicySingleUse RecoveryPolicy = "single_use"
)

func ParseRecoveryPolicy(s string) (RecoveryPolicy, error) {
	switch p := RecoveryPolicy(s); p {
	case PolicyRearm, PolicySingleUse:
		return p, nil
	case "":
		return PolicyRearm, nil
	default:
		return "", fmt.Errorf("unknown recovery policy %q", s)
	}
}

// RecoveryTimelock lets a locally trusted manager seize local authority
// after Delay has elapsed since it armed the timelock.
//
// Transitions:
//   - idle -> pending: Initiate, manager only
//   - pending -> idle: Cancel, governor only (checked by the router)
//   - pending -> executed: Execute, manager only, once Delay has elapsed
//   - executed -> idle: Release, manager only (consumed under PolicySingleUse)
type RecoveryTimelock struct {
	Manager     id.Address     `json:"manager"`
	Delay       time.Duration  `json:"delay"`
	Policy      RecoveryPolicy `json:"policy"`
	Status      RecoveryStatus `json:"status"`
	ActiveSince *time.Time     `json:"active_since,omitempty"`
	ExecutedAt  *time.Time     `json:"executed_at,omitempty"`
	Consumed    bool           `json:"consumed"`
}

// NewRecoveryTimelock builds an idle timelock.
func NewRecoveryTimelock(manager id.Address, delay time.Duration, policy RecoveryPolicy) (RecoveryTimelock, error) {
	if manager.IsZero() {
		return RecoveryTimelock{}, fmt.Errorf("recovery manager: %w", ErrInvalidAddress)
	}
	if delay < 0 {
		return RecoveryTimelock{}, fmt.Errorf("recovery delay must not be negative")
	}
	if policy == "" {
		policy = PolicyRearm
	}
	return RecoveryTimelock{
		Manager: manager,
		Delay:   delay,
		Policy:  policy,
		Status:  RecoveryIdle,
	}, nil
}

// Executed reports whether the manager currently holds local authority.
func (r RecoveryTimelock) Executed() bool {
	return r.Status == RecoveryExecuted
}

// ReadyAt returns the earliest time Execute can succeed while pending.
func (r RecoveryTimelock) ReadyAt() (time.Time, bool) {
	if r.Status != RecoveryPending || r.ActiveSince == nil {
		return time.Time{}, false
	}
	return r.ActiveSince.Add(r.Delay), true
}

// Initiate arms the timelock.
func (r *RecoveryTimelock) Initiate(caller id.Address, now time.Time) error {
	if caller != r.Manager {
		return ErrUnauthorized
	}
	switch {
	case r.Consumed:
		return ErrRecoveryConsumed
	case r.Status == RecoveryPending:
		return ErrRecoveryAlreadyPending
	case r.Status == RecoveryExecuted:
		return ErrRecoveryActive
	}
	since := now
	r.Status = RecoveryPending
	r.ActiveSince = &since
	return nil
}

// Cancel disarms a pending timelock.
func (r *RecoveryTimelock) Cancel() error {
	if r.Status != RecoveryPending {
		return ErrRecoveryNotPending
	}
	r.Status = RecoveryIdle
	r.ActiveSince = nil
	return nil
}

// Execute hands local authority to the manager once the delay has elapsed.
func (r *RecoveryTimelock) Execute(caller id.Address, now time.Time) error {
	if caller != r.Manager {
		return ErrUnauthorized
	}
	readyAt, ok := r.ReadyAt()
	if !ok {
		return errNotPending
	}
	if now.Before(readyAt) {
		return ErrTimelockNotElapsed
	}
	executed := now
	r.Status = RecoveryExecuted
	r.ExecutedAt = &executed
	return nil
}

// Release gives local authority back to the governor.
func (r *RecoveryTimelock) Release(caller id.Address) error {
	if caller != r.Manager {
		return ErrUnauthorized
	}
	if r.Status != RecoveryExecuted {
		return ErrRecoveryNotPending
	}
	r.Status = RecoveryIdle
	r.ActiveSince = nil
	r.ExecutedAt = nil
	if r.Policy == PolicySingleUse {
		r.Consumed = true
	}
	return nil
}

// TransferManager hands the manager role to next.
func (r *RecoveryTimelock) TransferManager(caller, next id.Address) error {
	if caller != r.Manager {
		return ErrUnauthorized
	}
	if next.IsZero() {
		return ErrInvalidAddress
	}
	r.Manager = next
	return nil
}

// Clone returns a copy that shares no pointers with r.
func (r RecoveryTimelock) Clone() RecoveryTimelock {
	out := r
	if r.ActiveSince != nil {
		t := *r.ActiveSince
		out.ActiveSince = &t
	}
	if r.ExecutedAt != nil {
		t := *r.ExecutedAt
		out.ExecutedAt = &t
	}
	return out
}
