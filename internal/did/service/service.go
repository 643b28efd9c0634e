package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"seeddid/internal/audit"
	"seeddid/internal/did/models"
	"seeddid/internal/messaging"
	"seeddid/internal/platform/metrics"
	"seeddid/internal/platform/secrets"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/sentinel"
	"seeddid/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, did *models.DID) error
	FindByAddress(ctx context.Context, address string) (*models.DID, error)
}

// Service registers DIDs and serves their keys to the login and message
// sealing paths.
type Service struct {
	store   Store
	box     *secrets.Box
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

// New requires the box used to seal private keys at rest.
func New(store Store, box *secrets.Box, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("did store is required")
	}
	if box == nil {
		return nil, errors.New("key sealing box is required")
	}
	s := &Service{store: store, box: box, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Save(ctx context.Context, req models.SaveRequest) (*models.DID, error) {
	address := messaging.NormalizeAddress(req.Address)
	if address == "" || strings.TrimSpace(req.PublicKey) == "" || strings.TrimSpace(req.PrivateKey) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing required fields")
	}
	pub, err := models.ParsePublicKey(req.PublicKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "publicKey must be a hex Ed25519 public key")
	}
	priv, err := models.ParsePrivateKey(req.PrivateKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "privateKey must be a hex Ed25519 private key")
	}
	if !pub.Equal(priv.Public()) {
		return nil, dErrors.New(dErrors.CodeValidation, "privateKey does not match publicKey")
	}

	sealed, err := s.box.Seal(priv.Seed(), []byte(address))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal private key")
	}
	did := &models.DID{
		Address:          address,
		PublicKey:        models.EncodeKey(pub),
		SealedPrivateKey: sealed,
		CreatedAt:        requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.Create(ctx, did); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "wallet address already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save did")
	}

	s.metrics.IncrementDIDsCreated()
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionDIDCreated,
			Address:   address,
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit event dropped", "action", audit.ActionDIDCreated, "error", err)
		}
	}
	return did, nil
}

// Lookup returns the DID registered for address.
func (s *Service) Lookup(ctx context.Context, address string) (*models.DID, error) {
	address = messaging.NormalizeAddress(address)
	if address == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing required field: address")
	}
	did, err := s.store.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "wallet address not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get did")
	}
	return did, nil
}

// PublicKey returns the identity key of address.
func (s *Service) PublicKey(ctx context.Context, address string) (ed25519.PublicKey, error) {
	did, err := s.Lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	pub, err := models.ParsePublicKey(did.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("stored public key of %s: %w", did.Address, err)
	}
	return pub, nil
}

// PrivateKey unseals the identity key of address.
func (s *Service) PrivateKey(ctx context.Context, address string) (ed25519.PrivateKey, error) {
	did, err := s.Lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	seed, err := s.box.Open(did.SealedPrivateKey, []byte(did.Address))
	if err != nil {
		return nil, fmt.Errorf("unseal private key of %s: %w", did.Address, err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
