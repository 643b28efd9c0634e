package service

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"seeddid/internal/audit"
	"seeddid/internal/auth/models"
	"seeddid/internal/messaging"
	"seeddid/internal/platform/metrics"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/requestcontext"
)

// KeyLookup resolves the DID public key registered for an address.
type KeyLookup interface {
	PublicKey(ctx context.Context, address string) (ed25519.PublicKey, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(address string, now time.Time) (string, time.Time, error)
}

// Service signs wallets in by verifying a signature over the challenge.
type Service struct {
	keys    KeyLookup
	tokens  TokenIssuer
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func New(keys KeyLookup, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if keys == nil {
		return nil, errors.New("key lookup is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{keys: keys, tokens: tokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Challenge returns the message wallets sign.
func (s *Service) Challenge() string {
	return models.ChallengeMessage
}

// Login verifies req.Signature against the DID key of req.Address and issues
// an access token. Unknown addresses and bad signatures are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	address := messaging.NormalizeAddress(req.Address)
	if address == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing required fields")
	}

	pub, err := s.keys.PublicKey(ctx, address)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up did")
		}
		s.rejected(ctx, address, "unknown address")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid signature")
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(req.Signature), "0x"))
	if err != nil || len(sig) != ed25519.SignatureSize || !ed25519.Verify(pub, []byte(models.ChallengeMessage), sig) {
		s.rejected(ctx, address, "signature mismatch")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid signature")
	}

	token, expiresAt, err := s.tokens.Issue(address, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.metrics.IncrementLogin("succeeded")
	s.emit(ctx, audit.Event{Action: audit.ActionLoginSucceeded, Address: address})
	return &models.Session{
		Address:     address,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) rejected(ctx context.Context, address, reason string) {
	s.metrics.IncrementLogin("failed")
	s.logger.WarnContext(ctx, "login rejected",
		"address", address,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{Action: audit.ActionLoginFailed, Address: address, Reason: reason})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit event dropped", "action", event.Action, "error", err)
	}
}
