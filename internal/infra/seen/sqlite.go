package seen

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS seen_markets (
	slug    TEXT PRIMARY KEY,
	seen_at TEXT NOT NULL
)`

const sqliteTimeout = 10 * time.Second

// SQLiteStore keeps the seen set in a SQLite table, mirrored in memory.
type SQLiteStore struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
	set  map[string]struct{}
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StoreError{Op: "mkdir", Path: path, Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Path: path, Err: err}
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = FULL")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, &StoreError{Op: "migrate", Path: path, Err: err}
	}

	set, err := loadSQLiteSlugs(ctx, db)
	if err != nil {
		db.Close()
		return nil, &StoreError{Op: "load", Path: path, Err: err}
	}

	return &SQLiteStore{path: path, db: db, set: set}, nil
}

func loadSQLiteSlugs(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT slug FROM seen_markets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		set[slug] = struct{}{}
	}
	return set, rows.Err()
}

func (s *SQLiteStore) Contains(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[slug]
	return ok
}

func (s *SQLiteStore) Add(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validSlug(slug) {
		return &StoreError{Op: "insert", Path: s.path, Err: ErrInvalidSlug}
	}
	if _, ok := s.set[slug]; ok {
		return nil
	}
	if s.db == nil {
		return &StoreError{Op: "insert", Path: s.path, Err: ErrClosed}
	}

	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_markets(slug, seen_at) VALUES(?, ?) ON CONFLICT(slug) DO NOTHING`,
		slug, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StoreError{Op: "insert", Path: s.path, Err: err}
	}
	s.set[slug] = struct{}{}
	return nil
}

func (s *SQLiteStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
