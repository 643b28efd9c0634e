package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seeddid/internal/did/models"
	"seeddid/internal/platform/postgres"
	"seeddid/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, did *models.DID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dids (address, public_key, sealed_private_key, created_at)
		VALUES ($1, $2, $3, $4)
	`, did.Address, did.PublicKey, did.SealedPrivateKey, did.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("did %s: %w", did.Address, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("insert did: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByAddress(ctx context.Context, address string) (*models.DID, error) {
	var did models.DID
	err := s.db.QueryRowContext(ctx, `
		SELECT address, public_key, sealed_private_key, created_at
		FROM dids WHERE address = $1
	`, address).Scan(&did.Address, &did.PublicKey, &did.SealedPrivateKey, &did.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find did: %w", err)
	}
	return &did, nil
}
