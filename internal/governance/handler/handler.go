// Package handler exposes a router's local entry points and queries over
// HTTP. Callers are authenticated by middleware; whether a caller may act
// is decided by the router.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"govnet/internal/governance/models"
	"govnet/internal/governance/router"
	id "govnet/pkg/domain"
	dErrors "govnet/pkg/domain-errors"
	audit "govnet/pkg/platform/audit"
	"govnet/pkg/platform/httputil"
	"govnet/pkg/requestcontext"
)

// Router is the subset of *router.Router the handler drives.
type Router interface {
	Domain() id.Domain
	State() (*models.RouterState, error)
	GovernorDomain() (id.Domain, error)
	IsGovernor(domain id.Domain, address id.Address) bool
	Resolve(domain id.Domain) (id.Address, error)

	SetPeer(ctx context.Context, caller id.Address, domain id.Domain, address id.Address) error
	TransferGovernor(ctx context.Context, caller id.Address, domain id.Domain, governor id.Address) (router.Broadcast, error)
	CallAsGovernor(ctx context.Context, caller id.Address, targetDomain id.Domain, calls ...models.Call) error
	InitiateRecovery(ctx context.Context, caller id.Address) error
	CancelRecovery(ctx context.Context, caller id.Address) error
	ExecuteRecovery(ctx context.Context, caller id.Address) error
	ReleaseRecovery(ctx context.Context, caller id.Address) error
	TransferRecoveryManager(ctx context.Context, caller, manager id.Address) error
	RequestRecoveryCancel(ctx context.Context, caller id.Address, domain id.Domain) error
}

// AuditLister reads the audit trail of one router.
type AuditLister interface {
	List(ctx context.Context, domain id.Domain) ([]audit.Event, error)
}

// Handler wires governance endpoints to a router.
type Handler struct {
	router Router
	audit  AuditLister
	logger *slog.Logger
}

type Option func(*Handler)

func WithAuditLister(lister AuditLister) Option {
	return func(h *Handler) {
		h.audit = lister
	}
}

// New constructs a governance handler.
func New(r Router, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{router: r, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts governance endpoints. callerAuth guards state-changing
// routes; adminAuth guards the audit trail, which is only mounted when an
// audit lister is configured.
func (h *Handler) Register(r chi.Router, callerAuth, adminAuth func(http.Handler) http.Handler) {
	r.Route("/governance", func(r chi.Router) {
		r.Get("/state", h.HandleState)
		r.Get("/governor", h.HandleGovernor)
		r.Get("/governor/check", h.HandleIsGovernor)
		r.Get("/peers/{domain}", h.HandleResolve)

		r.Group(func(r chi.Router) {
			r.Use(callerAuth)
			r.Post("/peers", h.HandleSetPeer)
			r.Post("/governor/transfer", h.HandleTransferGovernor)
			r.Post("/calls", h.HandleCallAsGovernor)
			r.Post("/recovery/initiate", h.recoveryOp("initiate_recovery", h.router.InitiateRecovery))
			r.Post("/recovery/cancel", h.recoveryOp("cancel_recovery", h.router.CancelRecovery))
			r.Post("/recovery/execute", h.recoveryOp("execute_recovery", h.router.ExecuteRecovery))
			r.Post("/recovery/release", h.recoveryOp("release_recovery", h.router.ReleaseRecovery))
			r.Post("/recovery/manager", h.HandleTransferRecoveryManager)
			r.Post("/recovery/cancel-remote", h.HandleRequestRecoveryCancel)
		})

		if h.audit != nil {
			r.With(adminAuth).Get("/audit", h.HandleAudit)
		}
	})
}

// HandleState handles GET /governance/state.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, r, "state")
}

// HandleGovernor handles GET /governance/governor.
func (h *Handler) HandleGovernor(w http.ResponseWriter, r *http.Request) {
	governor, err := h.router.GovernorDomain()
	if err != nil {
		h.fail(w, r, "governor_domain", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GovernorResponse{GovernorDomain: uint32(governor)})
}

// HandleIsGovernor handles GET /governance/governor/check?domain=&address=.
func (h *Handler) HandleIsGovernor(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	domain, err := id.ParseDomain(query.Get("domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	address, err := id.ParseAddress(query.Get("address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IsGovernorResponse{
		Domain:     uint32(domain),
		Address:    address.String(),
		IsGovernor: h.router.IsGovernor(domain, address),
	})
}

// HandleResolve handles GET /governance/peers/{domain}.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	domain, err := id.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	address, err := h.router.Resolve(domain)
	if err != nil {
		h.fail(w, r, "resolve", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PeerResponse{Domain: uint32(domain), Address: address.String()})
}

// HandleSetPeer handles POST /governance/peers.
func (h *Handler) HandleSetPeer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetPeerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.router.SetPeer(ctx, caller, id.Domain(*req.Domain), req.parsedAddress); err != nil {
		h.fail(w, r, "set_peer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PeerResponse{Domain: *req.Domain, Address: req.parsedAddress.String()})
}

// HandleTransferGovernor handles POST /governance/governor/transfer. Broadcast
// legs the transport refused are reported in the body; the transfer itself
// has already been committed.
func (h *Handler) HandleTransferGovernor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferGovernorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	broadcast, err := h.router.TransferGovernor(ctx, caller, id.Domain(*req.Domain), req.parsedGovernor)
	if err != nil {
		h.fail(w, r, "transfer_governor", err)
		return
	}

	h.logger.InfoContext(ctx, "governor transferred",
		"request_id", requestcontext.RequestID(ctx),
		"domain", h.router.Domain(),
		"governor_domain", *req.Domain,
		"sent", len(broadcast.Sent),
		"failed", len(broadcast.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromBroadcast(*req.Domain, broadcast))
}

// HandleCallAsGovernor handles POST /governance/calls.
func (h *Handler) HandleCallAsGovernor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CallRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.router.CallAsGovernor(ctx, caller, id.Domain(*req.TargetDomain), req.parsedCalls...); err != nil {
		h.fail(w, r, "call_as_governor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransferRecoveryManager handles POST /governance/recovery/manager.
func (h *Handler) HandleTransferRecoveryManager(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferManagerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.router.TransferRecoveryManager(ctx, caller, req.parsedManager); err != nil {
		h.fail(w, r, "transfer_recovery_manager", err)
		return
	}
	h.writeState(w, r, "transfer_recovery_manager")
}

// HandleRequestRecoveryCancel handles POST /governance/recovery/cancel-remote.
func (h *Handler) HandleRequestRecoveryCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RemoteCancelRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.router.RequestRecoveryCancel(ctx, caller, id.Domain(*req.Domain)); err != nil {
		h.fail(w, r, "request_recovery_cancel", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleAudit handles GET /governance/audit?limit=. Newest events first.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	events, err := h.audit.List(ctx, h.router.Domain())
	if err != nil {
		h.fail(w, r, "list_audit", err)
		return
	}
	slices.SortStableFunc(events, func(a, b audit.Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditEvents(events))
}

func (h *Handler) recoveryOp(op string, fn func(context.Context, id.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := h.caller(w, r)
		if !ok {
			return
		}
		if err := fn(r.Context(), caller); err != nil {
			h.fail(w, r, op, err)
			return
		}
		h.writeState(w, r, op)
	}
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, op string) {
	state, err := h.router.State()
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromState(state))
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		// Only reachable when the route is mounted without caller auth.
		h.logger.ErrorContext(r.Context(), "caller missing from context",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.ZeroAddress, false
	}
	return caller, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"domain", h.router.Domain(),
		"operation", op,
		"error", err,
	}
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		h.logger.ErrorContext(ctx, "governance operation failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "governance operation refused", attrs...)
	}
	httputil.WriteError(w, err)
}
