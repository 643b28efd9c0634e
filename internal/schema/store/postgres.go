package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"seeddid/internal/platform/postgres"
	"seeddid/internal/schema/models"
	"seeddid/pkg/platform/sentinel"
)

// PostgresStore persists schemas in credential_schemas. Fields are a JSONB
// array in declaration order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, schema *models.Schema) error {
	fields, err := json.Marshal(schema.Fields)
	if err != nil {
		return fmt.Errorf("encode schema fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credential_schemas (name, fields, created_at)
		VALUES ($1, $2, $3)
	`, schema.Name, fields, schema.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("schema %s: %w", schema.Name, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("insert schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (*models.Schema, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, fields, created_at FROM credential_schemas WHERE name = $1
	`, name)
	schema, err := scanSchema(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find schema: %w", err)
	}
	return schema, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Schema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, fields, created_at FROM credential_schemas ORDER BY created_at, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	out := []*models.Schema{}
	for rows.Next() {
		schema, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		out = append(out, schema)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchema(row scanner) (*models.Schema, error) {
	var (
		schema models.Schema
		fields []byte
	)
	if err := row.Scan(&schema.Name, &fields, &schema.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &schema.Fields); err != nil {
		return nil, fmt.Errorf("decode schema fields: %w", err)
	}
	return &schema, nil
}
