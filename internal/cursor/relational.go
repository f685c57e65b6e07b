package cursor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// RelationalStore persists cursors in a Postgres table, one row per log URL.
// Advance is an immediate upsert; Flush is a no-op since writes go through.
type RelationalStore struct {
	db *sqlx.DB
}

const cursorSchema = `
CREATE TABLE IF NOT EXISTS log_cursors (
	log_url    TEXT PRIMARY KEY,
	next_index BIGINT NOT NULL
)`

// OpenRelationalStore connects to a Postgres database via the given DSN and
// ensures the cursor table exists.
func OpenRelationalStore(ctx context.Context, dsn string) (*RelationalStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cursor: open: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("cursor: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, cursorSchema); err != nil {
		return nil, fmt.Errorf("cursor: migrate: %w", err)
	}

	return &RelationalStore{db: db}, nil
}

func (r *RelationalStore) Load(ctx context.Context, url string) (int64, bool, error) {
	var idx int64

	err := r.db.GetContext(ctx, &idx, `SELECT next_index FROM log_cursors WHERE log_url = $1`, url)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("cursor: load %s: %w", url, err)
	}

	return idx, true, nil
}

func (r *RelationalStore) Advance(ctx context.Context, url string, index int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO log_cursors (log_url, next_index) VALUES ($1, $2)
		ON CONFLICT (log_url) DO UPDATE SET next_index = EXCLUDED.next_index`,
		url, index)
	if err != nil {
		return fmt.Errorf("cursor: advance %s: %w", url, err)
	}

	return nil
}

func (r *RelationalStore) Flush(_ context.Context) error {
	return nil
}

func (r *RelationalStore) List(ctx context.Context) ([]string, error) {
	var urls []string

	if err := r.db.SelectContext(ctx, &urls, `SELECT log_url FROM log_cursors`); err != nil {
		return nil, fmt.Errorf("cursor: list: %w", err)
	}

	return urls, nil
}

// Close releases the underlying database connection pool.
func (r *RelationalStore) Close() error {
	return r.db.Close()
}
