package models

import (
	"encoding/json"
	"maps"
	"slices"

	id "govnet/pkg/domain"
)

// AddressRegistry maps each known domain to the address of the peer router
// deployed there. At most one entry per domain; entries are only written by
// privileged local calls.
type AddressRegistry struct {
	peers map[id.Domain]id.Address
}

func NewAddressRegistry() AddressRegistry {
	return AddressRegistry{peers: make(map[id.Domain]id.Address)}
}

// Set records or overwrites the router address for domain.
func (r *AddressRegistry) Set(domain id.Domain, addr id.Address) error {
	if addr.IsZero() {
		return ErrInvalidAddress
	}
	if r.peers == nil {
		r.peers = make(map[id.Domain]id.Address)
	}
	r.peers[domain] = addr
	return nil
}

// Resolve returns the router address registered for domain.
func (r AddressRegistry) Resolve(domain id.Domain) (id.Address, error) {
	addr, ok := r.peers[domain]
	if !ok {
		return id.ZeroAddress, ErrUnknownPeer
	}
	return addr, nil
}

// Domains lists registered domains in ascending order.
func (r AddressRegistry) Domains() []id.Domain {
	return slices.Sorted(maps.Keys(r.peers))
}

func (r AddressRegistry) Len() int {
	return len(r.peers)
}

// Entries returns a copy of the mapping.
func (r AddressRegistry) Entries() map[id.Domain]id.Address {
	return maps.Clone(r.peers)
}

// Clone returns an independent copy.
func (r AddressRegistry) Clone() AddressRegistry {
	out := NewAddressRegistry()
	maps.Copy(out.peers, r.peers)
	return out
}

func (r AddressRegistry) MarshalJSON() ([]byte, error) {
	if r.peers == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.peers)
}

func (r *AddressRegistry) UnmarshalJSON(data []byte) error {
	peers := make(map[id.Domain]id.Address)
	if err := json.Unmarshal(data, &peers); err != nil {
		return err
	}
	for _, addr := range peers {
		if addr.IsZero() {
			return ErrInvalidAddress
		}
	}
	r.peers = peers
	return nil
}
