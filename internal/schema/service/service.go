package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"seeddid/internal/audit"
	"seeddid/internal/platform/metrics"
	"seeddid/internal/schema/models"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/sentinel"
	"seeddid/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, schema *models.Schema) error
	Get(ctx context.Context, name string) (*models.Schema, error)
	List(ctx context.Context) ([]*models.Schema, error)
}

// Service validates and stores credential schemas.
type Service struct {
	store   Store
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

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("schema store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Create(ctx context.Context, req models.CreateSchemaRequest) (*models.Schema, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	schema := &models.Schema{
		Name:      strings.TrimSpace(req.Name),
		Fields:    req.Fields,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, schema); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "schema with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create schema")
	}

	s.metrics.IncrementSchemasCreated()
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionSchemaCreated,
			Address:   requestcontext.Address(ctx),
			Subject:   schema.Name,
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit event dropped", "action", audit.ActionSchemaCreated, "error", err)
		}
	}
	return schema, nil
}

func (s *Service) Get(ctx context.Context, name string) (*models.Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing required field: name")
	}
	schema, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "schema not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get schema")
	}
	return schema, nil
}

// List returns every schema. An empty catalogue is reported as not found.
func (s *Service) List(ctx context.Context) ([]*models.Schema, error) {
	schemas, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list schemas")
	}
	if len(schemas) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no schemas found")
	}
	return schemas, nil
}

func validate(req models.CreateSchemaRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body: name is required")
	}
	if req.Fields == nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body: fields must be an array")
	}
	seen := make(map[string]struct{}, len(req.Fields))
	for _, f := range req.Fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			return dErrors.New(dErrors.CodeBadRequest, "invalid request body: every field needs a name")
		}
		if _, dup := seen[name]; dup {
			return dErrors.New(dErrors.CodeBadRequest, "invalid request body: duplicate field "+f.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
