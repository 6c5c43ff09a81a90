package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

type Options struct {
	BusyTimeout time.Duration
}

type Store struct {
	db *sql.DB
}

// Open opens the database at path and creates the schema if missing.
func Open(path string, options Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// every connection to :memory: is a separate database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", int(options.BusyTimeout/time.Millisecond)),
	}
	if path != memoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	source_url TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	frame_rate REAL NOT NULL DEFAULT 0,
	duration REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_assets_project ON assets(project_id);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL,
	parent_id TEXT,
	timestamp REAL NOT NULL,
	text TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	is_internal INTEGER NOT NULL DEFAULT 0,
	has_drawing INTEGER NOT NULL DEFAULT 0,
	attachments TEXT NOT NULL DEFAULT '[]',
	strokes TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_comments_asset ON comments(asset_id);
CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_id);
`

func (s *Store) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
