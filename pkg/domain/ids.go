package domain

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	dErrors "govnet/pkg/domain-errors"
)

// AddressLen is the canonical width of an Address in bytes.
const AddressLen = 32

// Domain names one execution environment in the governance network.
// Identifiers are globally unique and never reused.
type Domain uint32

func (d Domain) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// ParseDomain parses a base-10 domain identifier.
func ParseDomain(s string) (Domain, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid domain %q", s))
	}
	return Domain(v), nil
}

// Address identifies an entity within a domain (a router or an operator).
// Shorter native addresses are stored left-padded so that comparisons are
// well-defined across domains.
type Address [AddressLen]byte

// ZeroAddress means "no address".
var ZeroAddress Address

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String renders the canonical 0x-prefixed form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AddressFromBytes left-pads b into an Address. Inputs longer than
// AddressLen are rejected.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) > AddressLen {
		return a, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("address longer than %d bytes", AddressLen))
	}
	copy(a[AddressLen-len(b):], b)
	return a, nil
}

// ParseAddress accepts hex with or without a 0x prefix and of any even
// length up to 64 characters, e.g. a 20-byte account address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address must be hex encoded")
	}
	return AddressFromBytes(raw)
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}
