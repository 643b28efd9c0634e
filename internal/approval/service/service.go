// Package service reconciles approval requests with their responses over a
// wallet's message channel.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"seeddid/internal/approval/disclosure"
	"seeddid/internal/approval/envelope"
	"seeddid/internal/approval/models"
	"seeddid/internal/audit"
	"seeddid/internal/messaging"
	"seeddid/internal/platform/metrics"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/requestcontext"
)

const defaultConcurrency = 8

// Service scans channels for open requests and sends responses. It holds no
// per-user state; every call receives the channel to work on.
type Service struct {
	source      disclosure.Source
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     audit.Publisher
	tracer      trace.Tracer
	concurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithConcurrency bounds how many conversations are fetched at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New builds the engine. source supplies the values disclosed on approval.
func New(source disclosure.Source, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, errors.New("credential source is required")
	}
	s := &Service{
		source:      source,
		logger:      slog.Default(),
		tracer:      otel.Tracer("seeddid/approval"),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ScanOpenRequests returns every request addressed to self that has no
// response with the same request id in its conversation. Any channel failure
// fails the whole scan.
func (s *Service) ScanOpenRequests(ctx context.Context, ch messaging.Channel, self string) (*OpenSet, error) {
	ctx, span := s.tracer.Start(ctx, "approval.ScanOpenRequests")
	defer span.End()
	start := time.Now()

	convs, histories, err := s.readAll(ctx, ch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "channel unavailable")
		return nil, err
	}

	set := newOpenSet()
	unrecognized := 0
	for i, conv := range convs {
		open, skipped := openInConversation(conv, histories[i], self)
		unrecognized += skipped
		for _, req := range open {
			set.add(req)
		}
	}

	for range unrecognized {
		s.metrics.IncrementUnrecognized()
	}
	s.metrics.ObserveScan(time.Since(start), set.Len())
	span.SetAttributes(
		attribute.Int("approval.conversations", len(convs)),
		attribute.Int("approval.open", set.Len()),
	)
	s.logger.DebugContext(ctx, "scanned open requests",
		"address", self,
		"conversations", len(convs),
		"open", set.Len(),
		"unrecognized", unrecognized,
	)
	return set, nil
}

// Respond answers the open request identified by key and retires it from set
// once the channel accepts the message. A failed send leaves the request open.
func (s *Service) Respond(ctx context.Context, ch messaging.Channel, set *OpenSet, key models.RequestKey, approved bool) (messaging.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "approval.Respond", trace.WithAttributes(
		attribute.String("approval.conversation_id", key.ConversationID),
		attribute.String("approval.request_id", key.RequestID),
		attribute.Bool("approval.approved", approved),
	))
	defer span.End()

	req, ok := set.Get(key)
	if !ok {
		return messaging.Receipt{}, ErrRequestNotOpen
	}

	resp := envelope.Response{
		RequestID: req.RequestID,
		Approved:  approved,
		DataType:  req.DataType,
	}
	if approved {
		data, err := disclosure.Build(ctx, req.RequestedFields, ch.Address(), req.DataType, s.source)
		if err != nil {
			span.RecordError(err)
			return messaging.Receipt{}, fmt.Errorf("build disclosure: %w", err)
		}
		resp.DisclosedData = data
	}

	receipt, err := s.send(ctx, ch, req.PeerAddress, resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		s.metrics.IncrementResponse("failed")
		s.logger.WarnContext(ctx, "approval response not delivered",
			"request_id", req.RequestID,
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return messaging.Receipt{}, &DeliveryError{RequestID: req.RequestID, Err: err}
	}
	set.Retire(key)

	action, outcome := audit.ActionApprovalRejected, "rejected"
	if approved {
		action, outcome = audit.ActionApprovalResponded, "approved"
	}
	s.metrics.IncrementResponse(outcome)
	s.emit(ctx, audit.Event{
		Action:         action,
		Address:        ch.Address(),
		Peer:           req.PeerAddress,
		Subject:        req.RequestID,
		ConversationID: req.ConversationID,
		DataType:       string(req.DataType),
	})
	return receipt, nil
}

// SendRequest asks peer to disclose fields. The returned receipt's message id
// is the request id responses will carry.
func (s *Service) SendRequest(ctx context.Context, ch messaging.Channel, peer string, req envelope.Request) (messaging.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "approval.SendRequest")
	defer span.End()

	if req.Company == "" {
		return messaging.Receipt{}, dErrors.New(dErrors.CodeValidation, "company is required")
	}
	if req.DataType == "" {
		return messaging.Receipt{}, dErrors.New(dErrors.CodeValidation, "dataType is required")
	}
	if len(req.RequestedFields.Requested()) == 0 {
		return messaging.Receipt{}, dErrors.New(dErrors.CodeValidation, "at least one field must be requested")
	}
	if err := messaging.ValidatePeer(ch.Address(), peer); err != nil {
		return messaging.Receipt{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid peer address")
	}

	receipt, err := s.send(ctx, ch, peer, req)
	if err != nil {
		span.RecordError(err)
		return messaging.Receipt{}, &DeliveryError{Err: err}
	}

	s.metrics.IncrementRequestsSent()
	s.emit(ctx, audit.Event{
		Action:         audit.ActionApprovalRequested,
		Address:        ch.Address(),
		Peer:           messaging.NormalizeAddress(peer),
		Subject:        receipt.MessageID,
		ConversationID: messaging.ConversationID(ch.Address(), peer),
		DataType:       string(req.DataType),
	})
	return receipt, nil
}

// ReceivedResponses lists responses peers sent to self, oldest conversation
// first, joined with the request they answer when it is still in history.
func (s *Service) ReceivedResponses(ctx context.Context, ch messaging.Channel, self string) ([]models.ReceivedResponse, error) {
	ctx, span := s.tracer.Start(ctx, "approval.ReceivedResponses")
	defer span.End()

	convs, histories, err := s.readAll(ctx, ch)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := []models.ReceivedResponse{}
	for i, conv := range convs {
		out = append(out, responsesInConversation(conv, histories[i], self)...)
	}
	return out, nil
}

// readAll lists conversations and fetches their histories concurrently.
// histories[i] belongs to convs[i].
func (s *Service) readAll(ctx context.Context, ch messaging.Channel) ([]messaging.Conversation, [][]messaging.Message, error) {
	convs, err := ch.ListConversations(ctx)
	if err != nil {
		return nil, nil, &ChannelError{Op: "list conversations", Err: err}
	}

	histories := make([][]messaging.Message, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, conv := range convs {
		g.Go(func() error {
			msgs, err := ch.ListMessages(gctx, conv)
			if err != nil {
				return &ChannelError{Op: "list messages of " + conv.ID, Err: err}
			}
			histories[i] = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return convs, histories, nil
}

func (s *Service) send(ctx context.Context, ch messaging.Channel, peer string, env envelope.Envelope) (messaging.Receipt, error) {
	body, err := envelope.Encode(env)
	if err != nil {
		return messaging.Receipt{}, err
	}
	conv, err := ch.NewConversation(ctx, peer)
	if err != nil {
		return messaging.Receipt{}, err
	}
	return ch.Send(ctx, conv, body)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		event.RequestID = id
	}
	if err := s.auditor.Emit(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "audit event dropped", "action", event.Action, "error", err)
	}
}

// openInConversation classifies one history. The answered set covers the
// whole history before any request is judged, so message order does not
// change the result.
func openInConversation(conv messaging.Conversation, msgs []messaging.Message, self string) ([]models.OpenRequest, int) {
	answered := make(map[string]struct{})
	var candidates []models.OpenRequest
	unrecognized := 0

	for _, msg := range msgs {
		switch env := envelope.Decode(msg.Body).(type) {
		case envelope.Response:
			answered[env.RequestID] = struct{}{}
		case envelope.Request:
			if messaging.SameAddress(msg.SenderAddress, self) {
				continue
			}
			candidates = append(candidates, toOpenRequest(conv, msg, env))
		case envelope.Unrecognized:
			unrecognized++
		}
	}

	open := make([]models.OpenRequest, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, req := range candidates {
		if _, ok := answered[req.RequestID]; ok {
			continue
		}
		if _, dup := seen[req.RequestID]; dup {
			continue
		}
		seen[req.RequestID] = struct{}{}
		open = append(open, req)
	}
	return open, unrecognized
}

func responsesInConversation(conv messaging.Conversation, msgs []messaging.Message, self string) []models.ReceivedResponse {
	sent := make(map[string]models.OpenRequest)
	for _, msg := range msgs {
		if req, ok := envelope.Decode(msg.Body).(envelope.Request); ok && messaging.SameAddress(msg.SenderAddress, self) {
			sent[msg.ID] = toOpenRequest(conv, msg, req)
		}
	}

	var out []models.ReceivedResponse
	for _, msg := range msgs {
		resp, ok := envelope.Decode(msg.Body).(envelope.Response)
		if !ok || messaging.SameAddress(msg.SenderAddress, self) {
			continue
		}
		received := models.ReceivedResponse{
			RequestID:     resp.RequestID,
			PeerAddress:   msg.SenderAddress,
			Approved:      resp.Approved,
			DataType:      resp.DataType,
			DisclosedData: resp.DisclosedData,
			RespondedAt:   msg.SentAt,
		}
		if req, ok := sent[resp.RequestID]; ok {
			received.Request = &req
		}
		out = append(out, received)
	}
	return out
}

func toOpenRequest(conv messaging.Conversation, msg messaging.Message, req envelope.Request) models.OpenRequest {
	return models.OpenRequest{
		RequestID:       msg.ID,
		Company:         req.Company,
		DataType:        req.DataType,
		RequestedFields: req.RequestedFields,
		PeerAddress:     conv.PeerAddress,
		ConversationID:  conv.ID,
		ReceivedAt:      msg.SentAt,
	}
}
