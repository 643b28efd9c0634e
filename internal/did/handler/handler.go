package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seeddid/internal/did/models"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/httputil"
	"seeddid/pkg/requestcontext"
)

type Service interface {
	Save(ctx context.Context, req models.SaveRequest) (*models.DID, error)
	Lookup(ctx context.Context, address string) (*models.DID, error)
}

type Handler struct {
	dids   Service
	logger *slog.Logger
}

func New(dids Service, logger *slog.Logger) *Handler {
	return &Handler{dids: dids, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/did", h.handleGet)
	r.Post("/did", h.handleSave)
}

// handleGet only ever exposes the public key.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, err := h.dids.Lookup(ctx, r.URL.Query().Get("address"))
	if err != nil {
		h.fail(ctx, w, "failed to get did", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"did": did.PublicKey})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.SaveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid save did request", err)
		return
	}
	did, err := h.dids.Save(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to save did", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "DID saved successfully",
		"address": did.Address,
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	httputil.WriteError(w, err)
}
