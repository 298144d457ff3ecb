package models

import id "govnet/pkg/domain"

// AuthorityState records which domain is the global governor and, when
// this domain governs, which local address acts as governor proxy.
//
// Invariants:
//   - GovernorAddress is only meaningful while GovernorDomain == LocalDomain;
//     it is cleared whenever governorship moves to another domain
//   - GovernorDomain changes only through Transfer (local transfer or an
//     accepted SetGovernor message)
type AuthorityState struct {
	LocalDomain     id.Domain  `json:"local_domain"`
	GovernorDomain  id.Domain  `json:"governor_domain"`
	GovernorAddress id.Address `json:"governor_address"`
}

// NewAuthorityState starts self-governing with governor as local proxy.
func NewAuthorityState(local id.Domain, governor id.Address) AuthorityState {
	return AuthorityState{
		LocalDomain:     local,
		GovernorDomain:  local,
		GovernorAddress: governor,
	}
}

// SelfGoverning reports whether this domain currently holds governorship.
func (a AuthorityState) SelfGoverning() bool {
	return a.GovernorDomain == a.LocalDomain
}

// IsGovernor reports whether (callerDomain, caller) may act as governor.
// Same-domain callers must be the stored proxy of a self-governing domain;
// remote callers only need to come from the governor domain (the router
// checks the sender against the peer registry separately).
func (a AuthorityState) IsGovernor(callerDomain id.Domain, caller id.Address) bool {
	if callerDomain != a.GovernorDomain {
		return false
	}
	if callerDomain == a.LocalDomain {
		return !a.GovernorAddress.IsZero() && caller == a.GovernorAddress
	}
	return true
}

// Transfer moves governorship to domain. The proxy address is kept only
// when the new governor is this domain; otherwise it is unknown here.
func (a *AuthorityState) Transfer(domain id.Domain, governor id.Address) {
	a.GovernorDomain = domain
	if domain == a.LocalDomain {
		a.GovernorAddress = governor
		return
	}
	a.GovernorAddress = id.ZeroAddress
}
