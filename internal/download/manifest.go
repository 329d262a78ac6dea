package download

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const manifestSchema = `
CREATE TABLE IF NOT EXISTS downloads (
	url         TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	path        TEXT NOT NULL,
	bytes       INTEGER NOT NULL,
	finished_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downloads_source ON downloads (source);
`

// Entry is one completed download.
type Entry struct {
	Source     string
	URL        string
	Path       string
	Bytes      int64
	FinishedAt time.Time
}

// Manifest is a SQLite record of completed downloads, used to resume long
// multi-year runs.
type Manifest struct {
	db *sql.DB
}

// OpenManifest opens or creates the manifest database at path. ":memory:"
// gives a throwaway manifest.
func OpenManifest(path string) (*Manifest, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(manifestSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init manifest: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close closes the database.
func (m *Manifest) Close() error { return m.db.Close() }

// Record stores e, replacing any earlier entry for the same URL.
func (m *Manifest) Record(ctx context.Context, e Entry) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO downloads (url, source, path, bytes, finished_ms)
		VALUES (?, ?, ?, ?, ?)`,
		e.URL, e.Source, e.Path, e.Bytes, e.FinishedAt.UnixMilli())
	return err
}

// Lookup returns the entry for url, if recorded.
func (m *Manifest) Lookup(ctx context.Context, url string) (Entry, bool, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT url, source, path, bytes, finished_ms FROM downloads WHERE url = ?`, url)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// List returns all entries for source ordered by URL. An empty source lists
// everything.
func (m *Manifest) List(ctx context.Context, source string) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT url, source, path, bytes, finished_ms FROM downloads
		WHERE ? = '' OR source = ?
		ORDER BY url`, source, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e  Entry
		ms int64
	)
	if err := s.Scan(&e.URL, &e.Source, &e.Path, &e.Bytes, &ms); err != nil {
		return Entry{}, err
	}
	e.FinishedAt = time.UnixMilli(ms).UTC()
	return e, nil
}
