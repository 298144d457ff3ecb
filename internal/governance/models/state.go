package models

import (
	"fmt"
	"time"

	id "govnet/pkg/domain"
)

// RouterState is the persisted snapshot of one router instance. The router
// is the only writer; stores treat it as an opaque aggregate keyed by Domain.
type RouterState struct {
	Domain    id.Domain        `json:"domain"`
	Address   id.Address       `json:"address"`
	Authority AuthorityState   `json:"authority"`
	Peers     AddressRegistry  `json:"peers"`
	Recovery  RecoveryTimelock `json:"recovery"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Clone returns a deep copy suitable for copy-on-write updates.
func (s *RouterState) Clone() *RouterState {
	if s == nil {
		return nil
	}
	out := *s
	out.Peers = s.Peers.Clone()
	out.Recovery = s.Recovery.Clone()
	return &out
}

// Validate checks the invariants a store must never persist broken.
func (s *RouterState) Validate() error {
	if s.Address.IsZero() {
		return fmt.Errorf("router address: %w", ErrInvalidAddress)
	}
	if s.Authority.LocalDomain != s.Domain {
		return fmt.Errorf("authority local domain %s does not match router domain %s", s.Authority.LocalDomain, s.Domain)
	}
	if s.Recovery.Manager.IsZero() {
		return fmt.Errorf("recovery manager: %w", ErrInvalidAddress)
	}
	switch s.Recovery.Status {
	case RecoveryIdle, RecoveryExecuted:
	case RecoveryPending:
		if s.Recovery.ActiveSince == nil {
			return fmt.Errorf("pending recovery without start time")
		}
	default:
		return fmt.Errorf("unknown recovery status %q", s.Recovery.Status)
	}
	return nil
}
