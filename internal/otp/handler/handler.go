package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the interface for session operations.
type Service interface {
	Issue(ctx context.Context, cmd models.IssueCommand) (*models.Session, error)
	Get(ctx context.Context, issuerID id.IssuerID, code string) (*models.Session, error)
}

// Handler handles issuer-facing session endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new session Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// Register registers the session routes with the chi router. Callers must
// mount it behind the issuer role check.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/otp/sessions", h.HandleIssue)
	r.Get("/v1/otp/sessions/{code}", h.HandleGet)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, err := httputil.RequireActorID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.service.Issue(ctx, req.ToCommand(id.IssuerID(actorID)))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to issue otp session",
			"request_id", requestID,
			"issuer_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(session, requestcontext.Now(ctx)))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, err := httputil.RequireActorID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	code := chi.URLParam(r, "code")
	session, err := h.service.Get(ctx, id.IssuerID(actorID), code)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to get otp session",
			"request_id", requestID,
			"session_code", code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(session, requestcontext.Now(ctx)))
}
