// Package wire encodes governance envelopes for transports that cross a
// process boundary. Frames are versioned JSON; when a key is configured
// each frame carries an HMAC-SHA256 over its body so a party without the
// key, such as the broker, cannot forge or alter an envelope.
//
// The key is shared by every router in the network. It authenticates
// network membership, not the source domain: any key holder can sign a
// frame claiming any SourceDomain and SourceAddress. Per-domain source
// authenticity rests on broker ACLs that restrict who may produce to
// each destination topic, and on the receiver matching SourceAddress
// against its own AddressRegistry. Deployments that cannot trust every
// key holder need per-domain keys or asymmetric signatures.
package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"govnet/internal/governance/models"
)

// Version is the current frame version.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported frame version")
	ErrBadSignature       = errors.New("frame signature mismatch")
	ErrUnsigned           = errors.New("frame is not signed")
)

type frame struct {
	Version   int             `json:"v"`
	Body      json.RawMessage `json:"body"`
	Signature []byte          `json:"sig,omitempty"`
}

// Codec marshals envelopes to frames.
type Codec struct {
	key []byte
}

// NewCodec returns a codec. An empty key produces unsigned frames and
// accepts unsigned frames.
func NewCodec(key []byte) *Codec {
	return &Codec{key: key}
}

func (c *Codec) Encode(env models.Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	f := frame{Version: Version, Body: body}
	if len(c.key) > 0 {
		f.Signature = c.sign(body)
	}
	return json.Marshal(f)
}

func (c *Codec) Decode(data []byte) (models.Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return models.Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Version != Version {
		return models.Envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}
	if len(c.key) > 0 {
		if len(f.Signature) == 0 {
			return models.Envelope{}, ErrUnsigned
		}
		if !hmac.Equal(f.Signature, c.sign(f.Body)) {
			return models.Envelope{}, ErrBadSignature
		}
	}
	var env models.Envelope
	if err := json.Unmarshal(f.Body, &env); err != nil {
		return models.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func (c *Codec) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(body)
	return mac.Sum(nil)
}
