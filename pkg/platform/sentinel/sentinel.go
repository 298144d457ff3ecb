package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transports return
// these (optionally wrapped) so the router can translate them into domain
// errors or decide to seed fresh state.
//
//   - ErrNotFound: no snapshot/record exists for the key
//   - ErrConflict: concurrent writer changed the record first
//   - ErrInvalidState: stored data cannot be decoded into a valid state
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
