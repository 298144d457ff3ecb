package handler

import (
	"bytes"
	"encoding/json"
	"strings"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	dErrors "govnet/pkg/domain-errors"
)

const maxCallsPerRequest = 64

// SetPeerRequest is the body of POST /governance/peers.
type SetPeerRequest struct {
	Domain  *uint32 `json:"domain"`
	Address string  `json:"address"`

	parsedAddress id.Address
}

func (r *SetPeerRequest) Validate() error {
	if r.Domain == nil {
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	addr, err := id.ParseAddress(strings.TrimSpace(r.Address))
	if err != nil {
		return err
	}
	r.parsedAddress = addr
	return nil
}

// TransferGovernorRequest is the body of POST /governance/governor/transfer.
type TransferGovernorRequest struct {
	Domain   *uint32 `json:"domain"`
	Governor string  `json:"governor"`

	parsedGovernor id.Address
}

func (r *TransferGovernorRequest) Validate() error {
	if r.Domain == nil {
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	governor, err := id.ParseAddress(strings.TrimSpace(r.Governor))
	if err != nil {
		return err
	}
	r.parsedGovernor = governor
	return nil
}

// CallRequest is the body of POST /governance/calls.
type CallRequest struct {
	TargetDomain *uint32    `json:"target_domain"`
	Calls        []CallBody `json:"calls"`

	parsedCalls []models.Call
}

// CallBody is one call. Data is handed to the target verbatim.
type CallBody struct {
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data"`
}

func (r *CallRequest) Validate() error {
	if r.TargetDomain == nil {
		return dErrors.New(dErrors.CodeValidation, "target_domain is required")
	}
	if len(r.Calls) == 0 {
		return dErrors.New(dErrors.CodeValidation, "calls must not be empty")
	}
	if len(r.Calls) > maxCallsPerRequest {
		return dErrors.New(dErrors.CodeValidation, "too many calls in one request")
	}
	r.parsedCalls = make([]models.Call, 0, len(r.Calls))
	for _, c := range r.Calls {
		target, err := id.ParseAddress(strings.TrimSpace(c.Target))
		if err != nil {
			return err
		}
		r.parsedCalls = append(r.parsedCalls, models.Call{Target: target, Data: bytes.Clone(c.Data)})
	}
	return nil
}

// TransferManagerRequest is the body of POST /governance/recovery/manager.
type TransferManagerRequest struct {
	Manager string `json:"manager"`

	parsedManager id.Address
}

func (r *TransferManagerRequest) Validate() error {
	manager, err := id.ParseAddress(strings.TrimSpace(r.Manager))
	if err != nil {
		return err
	}
	r.parsedManager = manager
	return nil
}

// RemoteCancelRequest is the body of POST /governance/recovery/cancel-remote.
type RemoteCancelRequest struct {
	Domain *uint32 `json:"domain"`
}

func (r *RemoteCancelRequest) Validate() error {
	if r.Domain == nil {
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	return nil
}
