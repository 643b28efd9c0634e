package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seeddid/internal/approval/disclosure"
	"seeddid/internal/approval/envelope"
	"seeddid/internal/approval/models"
	"seeddid/internal/approval/service"
	"seeddid/internal/messaging"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/httputil"
	"seeddid/pkg/requestcontext"
)

// Service is the approval engine as seen by the handler.
type Service interface {
	ScanOpenRequests(ctx context.Context, ch messaging.Channel, self string) (*service.OpenSet, error)
	Respond(ctx context.Context, ch messaging.Channel, set *service.OpenSet, key models.RequestKey, approved bool) (messaging.Receipt, error)
	SendRequest(ctx context.Context, ch messaging.Channel, peer string, req envelope.Request) (messaging.Receipt, error)
	ReceivedResponses(ctx context.Context, ch messaging.Channel, self string) ([]models.ReceivedResponse, error)
}

// Handler exposes the approval inbox of the signed-in wallet. Routes must be
// mounted behind RequireAuth.
type Handler struct {
	approvals Service
	hub       messaging.Hub
	logger    *slog.Logger
}

func New(approvals Service, hub messaging.Hub, logger *slog.Logger) *Handler {
	return &Handler{approvals: approvals, hub: hub, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/requests", h.handleSendRequest)
		r.Get("/responses", h.handleResponses)
		r.Post("/{conversationID}/{requestID}/respond", h.handleRespond)
	})
}

type openRequestResponse struct {
	models.OpenRequest
	Summary string `json:"summary"`
}

type respondRequest struct {
	Approved *bool `json:"approved"`
}

type sendRequest struct {
	Peer            string               `json:"peer"`
	Company         string               `json:"company"`
	DataType        models.DataType      `json:"dataType"`
	RequestedFields models.FieldSelector `json:"requestedFields"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	self := requestcontext.Address(ctx)
	ch, err := h.channel(ctx, self)
	if err != nil {
		h.fail(ctx, w, "failed to open message channel", err)
		return
	}
	set, err := h.approvals.ScanOpenRequests(ctx, ch, self)
	if err != nil {
		h.fail(ctx, w, "failed to scan open requests", err)
		return
	}
	open := set.List()
	out := make([]openRequestResponse, 0, len(open))
	for _, req := range open {
		out = append(out, openRequestResponse{
			OpenRequest: req,
			Summary:     disclosure.Summarize(req.RequestedFields),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// handleRespond rescans before answering so the decision is made against the
// current history. An already answered request is no longer open. Request ids
// repeat across conversations, so the route names both.
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req respondRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid respond request", err)
		return
	}
	if req.Approved == nil {
		h.fail(ctx, w, "invalid respond request", dErrors.New(dErrors.CodeBadRequest, "missing required field: approved"))
		return
	}

	self := requestcontext.Address(ctx)
	ch, err := h.channel(ctx, self)
	if err != nil {
		h.fail(ctx, w, "failed to open message channel", err)
		return
	}
	set, err := h.approvals.ScanOpenRequests(ctx, ch, self)
	if err != nil {
		h.fail(ctx, w, "failed to scan open requests", err)
		return
	}
	key := models.RequestKey{
		ConversationID: chi.URLParam(r, "conversationID"),
		RequestID:      chi.URLParam(r, "requestID"),
	}
	receipt, err := h.approvals.Respond(ctx, ch, set, key, *req.Approved)
	if err != nil {
		h.fail(ctx, w, "failed to respond to request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req sendRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid approval request", err)
		return
	}
	ch, err := h.channel(ctx, requestcontext.Address(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to open message channel", err)
		return
	}
	receipt, err := h.approvals.SendRequest(ctx, ch, req.Peer, envelope.Request{
		Company:         req.Company,
		DataType:        req.DataType,
		RequestedFields: req.RequestedFields,
	})
	if err != nil {
		h.fail(ctx, w, "failed to send approval request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	self := requestcontext.Address(ctx)
	ch, err := h.channel(ctx, self)
	if err != nil {
		h.fail(ctx, w, "failed to open message channel", err)
		return
	}
	responses, err := h.approvals.ReceivedResponses(ctx, ch, self)
	if err != nil {
		h.fail(ctx, w, "failed to list responses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, responses)
}

func (h *Handler) channel(ctx context.Context, address string) (messaging.Channel, error) {
	if address == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not signed in")
	}
	ch, err := h.hub.Channel(ctx, address)
	if err != nil {
		return nil, &service.ChannelError{Op: "open channel", Err: err}
	}
	return ch, nil
}

// toDomainError gives engine errors an HTTP-facing code.
func toDomainError(err error) error {
	if _, ok := dErrors.CodeOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, messaging.ErrUnauthenticated):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "message channel rejected the caller")
	case errors.Is(err, service.ErrRequestNotOpen):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "request is not open")
	case errors.Is(err, service.ErrChannelUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "message channel unavailable, retry later")
	case errors.Is(err, service.ErrDeliveryFailed):
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "message could not be delivered, retry later")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "approval operation failed")
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	err = toDomainError(err)
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
