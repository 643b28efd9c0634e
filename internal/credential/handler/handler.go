package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	approvalmodels "seeddid/internal/approval/models"
	"seeddid/internal/credential/models"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/httputil"
	"seeddid/pkg/requestcontext"
)

type Service interface {
	Issue(ctx context.Context, issuer string, req models.IssueRequest) (*models.Credential, error)
	Get(ctx context.Context, subject string, dataType approvalmodels.DataType) (*models.Credential, error)
}

// Handler serves credential issuance. Routes must be mounted behind
// RequireAuth; the caller's address comes from the request context.
type Handler struct {
	credentials Service
	logger      *slog.Logger
}

func New(credentials Service, logger *slog.Logger) *Handler {
	return &Handler{credentials: credentials, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Get("/credentials/{type}", h.handleGet)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.IssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid issue credential request", err)
		return
	}
	cred, err := h.credentials.Issue(ctx, requestcontext.Address(ctx), req)
	if err != nil {
		h.fail(ctx, w, "failed to issue credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cred.View())
}

// handleGet returns the caller's own credential with sealed values redacted.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataType := approvalmodels.DataType(chi.URLParam(r, "type"))
	cred, err := h.credentials.Get(ctx, requestcontext.Address(ctx), dataType)
	if err != nil {
		h.fail(ctx, w, "failed to get credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred.View())
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"address", requestcontext.Address(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
