package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the interface for attendance operations.
type Service interface {
	Claim(ctx context.Context, cmd models.ClaimCommand) (*models.Record, error)
	ListByClaimant(ctx context.Context, claimantID id.ClaimantID) ([]*models.Record, error)
	ListBySession(ctx context.Context, issuerID id.IssuerID, code string) ([]*models.Record, error)
	ListBySessionID(ctx context.Context, issuerID id.IssuerID, sessionID id.SessionID) (*models.Roster, error)
}

// Handler handles attendance endpoints.
type Handler struct {
	logger          *slog.Logger
	service         Service
	claimMiddleware []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithClaimMiddleware wraps only the claim submission route, e.g. with a rate limiter.
func WithClaimMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.claimMiddleware = append(h.claimMiddleware, mw...)
	}
}

// New creates a new attendance Handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		service: service,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the claimant routes. Callers must mount it behind the
// claimant role check.
func (h *Handler) Register(r chi.Router) {
	r.With(h.claimMiddleware...).Post("/v1/attendance/claims", h.HandleClaim)
	r.Get("/v1/attendance/me", h.HandleListMine)
}

// RegisterIssuer registers the roster route behind the issuer role check.
func (h *Handler) RegisterIssuer(r chi.Router) {
	r.Get("/v1/otp/sessions/{code}/records", h.HandleRoster)
	r.Get("/v1/attendance/sessions/{sessionID}/records", h.HandleRosterByID)
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, err := httputil.RequireActorID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ClaimRequest](w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.service.Claim(ctx, req.ToCommand(id.ClaimantID(actorID)))
	if err != nil {
		h.logger.WarnContext(ctx, "attendance claim rejected",
			"request_id", requestID,
			"session_code", req.Code,
			"claimant_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toClaimResponse(record))
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, err := httputil.RequireActorID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.ListByClaimant(ctx, id.ClaimantID(actorID))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list attendance",
			"request_id", requestcontext.RequestID(ctx),
			"claimant_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toClaimListResponse(records))
}

func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, err := httputil.RequireActorID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	code := chi.URLParam(r, "code")
	records, err := h.service.ListBySession(ctx, id.IssuerID(actorID), code)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list roster",
			"request_id", requestcontext.RequestID(ctx),
			"session_code", code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRosterResponse(code, records))
}

// HandleRosterByID serves the roster of a session whose code may since have
// been issued again.
func (h *Handler) HandleRosterByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, err := httputil.RequireActorID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roster, err := h.service.ListBySessionID(ctx, id.IssuerID(actorID), sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list roster",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := toRosterResponse(roster.SessionCode, roster.Records)
	resp.SessionID = roster.SessionID.String()
	httputil.WriteJSON(w, http.StatusOK, resp)
}
