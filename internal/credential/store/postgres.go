package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	approvalmodels "seeddid/internal/approval/models"
	"seeddid/internal/credential/models"
	"seeddid/pkg/platform/sentinel"
)

// PostgresStore keeps credentials in the credentials table. Sealed fields
// are stored as a JSONB object of base64 ciphertexts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, cred *models.Credential) error {
	fields, err := json.Marshal(cred.Fields)
	if err != nil {
		return fmt.Errorf("encode credential fields: %w", err)
	}
	sealed, err := json.Marshal(cred.Sealed)
	if err != nil {
		return fmt.Errorf("encode sealed fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, subject, data_type, issuer, issued_at, fields, sealed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, cred.ID, cred.Subject, string(cred.DataType), cred.Issuer, cred.IssuedAt, fields, sealed)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, subject string, dataType approvalmodels.DataType) (*models.Credential, error) {
	var (
		cred           models.Credential
		fields, sealed []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, data_type, issuer, issued_at, fields, sealed
		FROM credentials
		WHERE subject = $1 AND data_type = $2
		ORDER BY issued_at DESC
		LIMIT 1
	`, subject, string(dataType)).Scan(
		&cred.ID, &cred.Subject, &cred.DataType, &cred.Issuer, &cred.IssuedAt, &fields, &sealed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if err := json.Unmarshal(fields, &cred.Fields); err != nil {
		return nil, fmt.Errorf("decode credential fields: %w", err)
	}
	if err := json.Unmarshal(sealed, &cred.Sealed); err != nil {
		return nil, fmt.Errorf("decode sealed fields: %w", err)
	}
	return &cred, nil
}
