package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seeddid/internal/schema/models"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/httputil"
	"seeddid/pkg/requestcontext"
)

// Service defines the schema operations the handler needs.
type Service interface {
	Create(ctx context.Context, req models.CreateSchemaRequest) (*models.Schema, error)
	Get(ctx context.Context, name string) (*models.Schema, error)
	List(ctx context.Context) ([]*models.Schema, error)
}

// Handler serves the schema catalogue.
type Handler struct {
	schemas Service
	logger  *slog.Logger
}

func New(schemas Service, logger *slog.Logger) *Handler {
	return &Handler{schemas: schemas, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/schema", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{name}", h.handleGet)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.schemas.List(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "failed to list schemas", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, schemas)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	schema, err := h.schemas.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(r.Context(), w, "failed to get schema", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, schema)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateSchemaRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid create schema request", err)
		return
	}
	schema, err := h.schemas.Create(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to create schema", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Schema created successfully",
		"schema":  schema,
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
