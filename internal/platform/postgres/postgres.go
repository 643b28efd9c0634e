// Package postgres opens the relational store and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"seeddid/internal/platform/config"
)

const uniqueViolation = "23505"

// Open connects to PostgreSQL and verifies the connection.
// Returns nil when no URL is configured.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// Migrate creates the tables used by the schema, DID and credential stores.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS credential_schemas (
	name       TEXT PRIMARY KEY,
	fields     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dids (
	address            TEXT PRIMARY KEY,
	public_key         TEXT NOT NULL,
	sealed_private_key BYTEA NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credentials (
	id         UUID PRIMARY KEY,
	subject    TEXT NOT NULL,
	data_type  TEXT NOT NULL,
	issuer     TEXT NOT NULL,
	issued_at  TIMESTAMPTZ NOT NULL,
	fields     JSONB NOT NULL,
	sealed     JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS credentials_subject_type_idx
	ON credentials (subject, data_type, issued_at DESC);
`
