// Package storage persists MatchRecords to Postgres for deployments with
// database.enabled=true.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/ct-watchtower/watchtower/internal/model"
)

const matchesSchema = `
CREATE TABLE IF NOT EXISTS matches (
	id            BIGSERIAL PRIMARY KEY,
	timestamp     TIMESTAMPTZ NOT NULL,
	matched_domain TEXT NOT NULL,
	all_domains   TEXT[] NOT NULL,
	cert_index    BIGINT NOT NULL,
	not_before    TIMESTAMPTZ,
	not_after     TIMESTAMPTZ,
	fingerprint   TEXT NOT NULL,
	program_name  TEXT,
	seen_unix     BIGINT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS matches_matched_domain_idx ON matches (matched_domain);
CREATE INDEX IF NOT EXISTS matches_timestamp_idx ON matches (timestamp DESC);
CREATE INDEX IF NOT EXISTS matches_program_name_idx ON matches (program_name) WHERE program_name IS NOT NULL;
`

// Store persists MatchRecords to a `matches` table.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres via dsn, applying maxConnections as the pool
// ceiling, and ensures the matches table and its indexes exist.
func Open(ctx context.Context, dsn string, maxConnections int) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	if maxConnections > 0 {
		db.SetMaxOpenConns(maxConnections)
	}

	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, matchesSchema); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// PersistMatch inserts one row into matches. Satisfies coordinator.Persister.
func (s *Store) PersistMatch(ctx context.Context, rec model.MatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches
			(timestamp, matched_domain, all_domains, cert_index, not_before, not_after, fingerprint, program_name, seen_unix)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.Timestamp, rec.MatchedDomain, pq.Array(rec.AllDomains), rec.CertIndex,
		nullIfZero(rec.NotBefore), nullIfZero(rec.NotAfter), rec.Fingerprint,
		nullIfEmpty(rec.ProgramName), rec.SeenAt.Unix())
	if err != nil {
		return fmt.Errorf("storage: insert match: %w", err)
	}

	return nil
}

func nullIfZero(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}

	return t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
