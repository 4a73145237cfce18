// Package catalog is the relational product store and the sync outbox,
// backed by SQLite (modernc.org/sqlite, no CGO).
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var errClosed = errors.New("catalog is closed")

// Repo owns the catalog database handle.
type Repo struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	now    func() time.Time
}

// Open opens (and migrates) the catalog at path. An empty path opens an
// in-memory database.
func Open(path string) (*Repo, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// one connection: a single writer, and :memory: is per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}

	return &Repo{db: db, now: time.Now}, nil
}

// Ping verifies the database is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errClosed
	}
	return r.db.PingContext(ctx)
}

// Close releases the database handle. Safe to call twice.
func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

func (r *Repo) handle() (*sql.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}
	return r.db, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	slug             TEXT NOT NULL UNIQUE,
	description      TEXT NOT NULL DEFAULT '',
	brand_id         TEXT NOT NULL DEFAULT '',
	brand_name       TEXT NOT NULL DEFAULT '',
	category_id      TEXT NOT NULL DEFAULT '',
	category_name    TEXT NOT NULL DEFAULT '',
	popularity_score REAL NOT NULL DEFAULT 0,
	sale_count       INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS options (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS option_values (
	id        TEXT PRIMARY KEY,
	option_id TEXT NOT NULL REFERENCES options(id),
	value     TEXT NOT NULL,
	UNIQUE (option_id, value)
);

CREATE TABLE IF NOT EXISTS variants (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	sku            TEXT NOT NULL,
	price          REAL NOT NULL,
	stock_quantity INTEGER NOT NULL DEFAULT 0,
	image          TEXT NOT NULL DEFAULT '',
	position       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS variants_product ON variants (product_id, position);

-- option_value_id is not a foreign key: a dangling value is an unresolved
-- selection the sync path reports and skips.
CREATE TABLE IF NOT EXISTS variant_selections (
	variant_id      TEXT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
	option_value_id TEXT NOT NULL,
	position        INTEGER NOT NULL,
	PRIMARY KEY (variant_id, position)
);

CREATE TABLE IF NOT EXISTS sync_outbox (
	product_id      TEXT PRIMARY KEY,
	version         INTEGER NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	next_attempt_at INTEGER NOT NULL,
	last_error      TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sync_outbox_due ON sync_outbox (next_attempt_at);
`
