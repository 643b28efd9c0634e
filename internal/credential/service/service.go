package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"seeddid/internal/approval/disclosure"
	approvalmodels "seeddid/internal/approval/models"
	"seeddid/internal/audit"
	"seeddid/internal/credential/confidential"
	"seeddid/internal/credential/models"
	"seeddid/internal/messaging"
	"seeddid/internal/platform/metrics"
	schemamodels "seeddid/internal/schema/models"
	dErrors "seeddid/pkg/domain-errors"
	"seeddid/pkg/platform/sentinel"
	"seeddid/pkg/requestcontext"
)

const dobLayout = "2006-01-02"

type Store interface {
	Save(ctx context.Context, cred *models.Credential) error
	Latest(ctx context.Context, subject string, dataType approvalmodels.DataType) (*models.Credential, error)
}

// SchemaLookup resolves custom credential types.
type SchemaLookup interface {
	Get(ctx context.Context, name string) (*schemamodels.Schema, error)
}

// Service issues credentials and answers disclosure reads against them.
type Service struct {
	store   Store
	schemas SchemaLookup
	sealer  *confidential.Sealer
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

func New(store Store, schemas SchemaLookup, sealer *confidential.Sealer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if schemas == nil {
		return nil, errors.New("schema lookup is required")
	}
	if sealer == nil {
		return nil, errors.New("confidential sealer is required")
	}
	s := &Service{store: store, schemas: schemas, sealer: sealer, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// fieldSpec is one accepted input field of a credential type.
type fieldSpec struct {
	name    string
	numeric bool
	sealed  bool
}

var builtinFields = map[approvalmodels.DataType][]fieldSpec{
	approvalmodels.DataTypeAadhar: {
		{name: "name"},
		{name: "dob"},
	},
	approvalmodels.DataTypeJob: {
		{name: "company"},
		{name: "post"},
		{name: "salary", numeric: true, sealed: true},
		{name: "yoe", numeric: true},
	},
}

// Issue validates req against its credential type and stores the credential.
// Fields marked encrypted are sealed before they reach the store.
func (s *Service) Issue(ctx context.Context, issuer string, req models.IssueRequest) (*models.Credential, error) {
	issuer = messaging.NormalizeAddress(issuer)
	subject := messaging.NormalizeAddress(req.Subject)
	if subject == "" {
		subject = issuer
	}
	if req.DataType == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "dataType is required")
	}

	specs, err := s.specsFor(ctx, req.DataType)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	cred := &models.Credential{
		ID:       uuid.New(),
		Subject:  subject,
		DataType: req.DataType,
		Issuer:   issuer,
		IssuedAt: now,
		Fields:   make(map[string]any),
		Sealed:   make(map[string][]byte),
	}

	known := make(map[string]struct{}, len(specs))
	for _, field := range specs {
		known[field.name] = struct{}{}
		raw, ok := req.Fields[field.name]
		if !ok || raw == nil || raw == "" {
			if req.DataType.IsBuiltin() {
				return nil, dErrors.New(dErrors.CodeValidation, "missing field: "+field.name)
			}
			continue
		}
		value := raw
		if field.numeric {
			n, ok := disclosure.ToFloat(raw)
			if !ok {
				return nil, dErrors.New(dErrors.CodeValidation, field.name+" must be a number")
			}
			value = n
		}
		if field.sealed {
			sealed, err := s.sealer.Seal(subject, req.DataType, field.name, value)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal field")
			}
			cred.Sealed[field.name] = sealed
			continue
		}
		cred.Fields[field.name] = value
	}
	for name := range req.Fields {
		if _, ok := known[name]; !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown field: "+name)
		}
	}

	if req.DataType == approvalmodels.DataTypeAadhar {
		age, err := ageOn(cred.Fields["dob"], now)
		if err != nil {
			return nil, err
		}
		cred.Fields["age"] = age
	}

	if err := s.store.Save(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}

	s.metrics.IncrementCredentialsIssued(string(req.DataType))
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionCredentialIssued,
			Address:   issuer,
			Subject:   subject,
			DataType:  string(req.DataType),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit event dropped", "action", audit.ActionCredentialIssued, "error", err)
		}
	}
	return cred, nil
}

// Get returns subject's newest credential of dataType.
func (s *Service) Get(ctx context.Context, subject string, dataType approvalmodels.DataType) (*models.Credential, error) {
	cred, err := s.store.Latest(ctx, messaging.NormalizeAddress(subject), dataType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get credential")
	}
	return cred, nil
}

// FieldValue is the unconstrained probe used when building a disclosure.
// Sealed fields report Sealed without a value.
func (s *Service) FieldValue(ctx context.Context, subject string, dataType approvalmodels.DataType, field string) (disclosure.Value, error) {
	cred, err := s.store.Latest(ctx, messaging.NormalizeAddress(subject), dataType)
	if errors.Is(err, sentinel.ErrNotFound) {
		return disclosure.Value{}, disclosure.ErrFieldNotFound
	}
	if err != nil {
		return disclosure.Value{}, err
	}
	name, sealed, ok := cred.Lookup(field)
	if !ok {
		return disclosure.Value{}, disclosure.ErrFieldNotFound
	}
	if sealed {
		return disclosure.Value{Sealed: true}, nil
	}
	return disclosure.Value{Raw: cred.Fields[name]}, nil
}

// RevealComparison evaluates cmp inside the confidential sealer; only the
// boolean leaves it.
func (s *Service) RevealComparison(ctx context.Context, subject string, dataType approvalmodels.DataType, field string, cmp approvalmodels.Comparison) (bool, error) {
	subject = messaging.NormalizeAddress(subject)
	cred, err := s.store.Latest(ctx, subject, dataType)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, disclosure.ErrFieldNotFound
	}
	if err != nil {
		return false, err
	}
	name, sealed, ok := cred.Lookup(field)
	if !ok {
		return false, disclosure.ErrFieldNotFound
	}
	if !sealed {
		stored, ok := disclosure.ToFloat(cred.Fields[name])
		if !ok {
			return false, confidential.ErrNotNumeric
		}
		return cmp.Operator.Evaluate(stored, cmp.Value), nil
	}
	return s.sealer.Compare(cred.Sealed[name], cred.Subject, cred.DataType, name, cmp)
}

func (s *Service) specsFor(ctx context.Context, dataType approvalmodels.DataType) ([]fieldSpec, error) {
	if specs, ok := builtinFields[dataType]; ok {
		return specs, nil
	}
	schema, err := s.schemas.Get(ctx, string(dataType))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "unknown credential type: "+string(dataType))
		}
		return nil, err
	}
	specs := make([]fieldSpec, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		specs = append(specs, fieldSpec{
			name:    f.Name,
			numeric: isNumericType(f.Type),
			sealed:  f.IsEncrypted,
		})
	}
	return specs, nil
}

func isNumericType(t string) bool {
	switch strings.ToLower(t) {
	case "number", "int", "integer", "float", "uint", "uint256":
		return true
	}
	return false
}

func ageOn(dob any, now time.Time) (float64, error) {
	s, ok := dob.(string)
	if !ok {
		return 0, dErrors.New(dErrors.CodeValidation, "dob must be a date (YYYY-MM-DD)")
	}
	born, err := time.Parse(dobLayout, s)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "dob must be a date (YYYY-MM-DD)")
	}
	if born.After(now) {
		return 0, dErrors.New(dErrors.CodeValidation, "dob is in the future")
	}
	years := now.Year() - born.Year()
	if !sameOrLaterMonthDay(now, born) {
		years--
	}
	return math.Max(0, float64(years)), nil
}

func sameOrLaterMonthDay(now, born time.Time) bool {
	if now.Month() != born.Month() {
		return now.Month() > born.Month()
	}
	return now.Day() >= born.Day()
}

var _ disclosure.Source = (*Service)(nil)
