package handler

import (
	"time"

	"govnet/internal/governance/models"
	"govnet/internal/governance/router"
	audit "govnet/pkg/platform/audit"
)

type RecoveryResponse struct {
	Manager     string     `json:"manager"`
	Delay       string     `json:"delay"`
	Policy      string     `json:"policy"`
	Status      string     `json:"status"`
	ActiveSince *time.Time `json:"active_since,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	Consumed    bool       `json:"consumed"`
}

type StateResponse struct {
	Domain          uint32            `json:"domain"`
	Address         string            `json:"address"`
	GovernorDomain  uint32            `json:"governor_domain"`
	GovernorAddress string            `json:"governor_address,omitempty"`
	SelfGoverning   bool              `json:"self_governing"`
	Peers           map[string]string `json:"peers"`
	Recovery        RecoveryResponse  `json:"recovery"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func FromState(s *models.RouterState) StateResponse {
	peers := make(map[string]string, s.Peers.Len())
	for d, addr := range s.Peers.Entries() {
		peers[d.String()] = addr.String()
	}
	resp := StateResponse{
		Domain:         uint32(s.Domain),
		Address:        s.Address.String(),
		GovernorDomain: uint32(s.Authority.GovernorDomain),
		SelfGoverning:  s.Authority.SelfGoverning(),
		Peers:          peers,
		Recovery: RecoveryResponse{
			Manager:     s.Recovery.Manager.String(),
			Delay:       s.Recovery.Delay.String(),
			Policy:      string(s.Recovery.Policy),
			Status:      string(s.Recovery.Status),
			ActiveSince: s.Recovery.ActiveSince,
			ExecutedAt:  s.Recovery.ExecutedAt,
			Consumed:    s.Recovery.Consumed,
		},
		UpdatedAt: s.UpdatedAt,
	}
	if !s.Authority.GovernorAddress.IsZero() {
		resp.GovernorAddress = s.Authority.GovernorAddress.String()
	}
	if readyAt, ok := s.Recovery.ReadyAt(); ok {
		resp.Recovery.ReadyAt = &readyAt
	}
	return resp
}

type GovernorResponse struct {
	GovernorDomain uint32 `json:"governor_domain"`
}

type IsGovernorResponse struct {
	Domain     uint32 `json:"domain"`
	Address    string `json:"address"`
	IsGovernor bool   `json:"is_governor"`
}

type PeerResponse struct {
	Domain  uint32 `json:"domain"`
	Address string `json:"address"`
}

type SendFailureResponse struct {
	Domain uint32 `json:"domain"`
	Error  string `json:"error"`
}

type TransferResponse struct {
	GovernorDomain uint32                `json:"governor_domain"`
	Sent           []uint32              `json:"sent"`
	Failed         []SendFailureResponse `json:"failed"`
}

func FromBroadcast(governor uint32, b router.Broadcast) TransferResponse {
	resp := TransferResponse{
		GovernorDomain: governor,
		Sent:           make([]uint32, 0, len(b.Sent)),
		Failed:         make([]SendFailureResponse, 0, len(b.Failed)),
	}
	for _, d := range b.Sent {
		resp.Sent = append(resp.Sent, uint32(d))
	}
	for _, f := range b.Failed {
		resp.Failed = append(resp.Failed, SendFailureResponse{Domain: uint32(f.Domain), Error: f.Err.Error()})
	}
	return resp
}

type AuditEventResponse struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func FromAuditEvents(events []audit.Event) []AuditEventResponse {
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventResponse{
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			Subject:   e.Subject,
			Action:    e.Action,
			Decision:  e.Decision,
			Reason:    e.Reason,
			ActorID:   e.ActorID,
			MessageID: e.MessageID,
			RequestID: e.RequestID,
		})
	}
	return out
}
