package models

import (
	"errors"
	"fmt"
)

// Governance error kinds. The router wraps these with domain-error codes;
// callers match them with errors.Is.
var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrUnknownPeer            = errors.New("unknown peer")
	ErrTimelockNotElapsed     = errors.New("recovery timelock not elapsed")
	ErrStaleGovernorMessage   = errors.New("stale governor message")
	ErrRecoveryNotPending     = errors.New("recovery not pending")
	ErrRecoveryAlreadyPending = errors.New("recovery already pending")
	ErrRecoveryActive         = errors.New("recovery active")
	ErrRecoveryConsumed       = errors.New("recovery consumed")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrInvalidAction          = errors.New("invalid action")
	ErrMisrouted              = errors.New("misrouted message")
	ErrNotInitialized         = errors.New("router not initialized")
	ErrCallFailed             = errors.New("governance call failed")
)

// errNotPending is what Execute returns outside the pending state. It
// matches both ErrUnauthorized and ErrRecoveryNotPending: nothing is armed,
// so the manager holds no right to execute.
var errNotPending = fmt.Errorf("%w: %w", ErrUnauthorized, ErrRecoveryNotPending)
