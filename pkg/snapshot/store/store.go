// Package store keeps named road network snapshots in a SQLite database.
// Each save adds a row; loading by name returns the most recent one.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/asphalt/pkg/snapshot"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Entry describes a stored snapshot without its payload.
type Entry struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	Nodes     int
	Segments  int
	Bytes     int
}

// Store is a snapshot catalog backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog at path. ":memory:" gives a private
// in-memory catalog.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			nodes INTEGER NOT NULL,
			segments INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS snapshots_name ON snapshots(name, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores doc under name and returns the new entry id. The document
// header is stamped with the same id.
func (s *Store) Save(ctx context.Context, name string, doc snapshot.Document) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, fmt.Errorf("empty snapshot name")
	}
	id := uuid.New()
	doc.Header.ID = id.String()
	if doc.Header.CreatedAt.IsZero() {
		doc.Header.CreatedAt = time.Now().UTC()
	}

	var buf bytes.Buffer
	if err := snapshot.Write(&buf, doc, snapshot.Options{Compress: true}); err != nil {
		return uuid.Nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, name, created_at, nodes, segments, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), name, doc.Header.CreatedAt.Format(time.RFC3339Nano), len(doc.Nodes), len(doc.Segments), buf.Bytes())
	if err != nil {
		return uuid.Nil, fmt.Errorf("save %q: %w", name, err)
	}
	return id, nil
}

// Load returns the most recently saved snapshot called name.
func (s *Store) Load(ctx context.Context, name string) (snapshot.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE name = ? ORDER BY seq DESC LIMIT 1`, name)
	return scanPayload(row, name)
}

// LoadID returns the snapshot with the given id.
func (s *Store) LoadID(ctx context.Context, id uuid.UUID) (snapshot.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, id.String())
	return scanPayload(row, id.String())
}

func scanPayload(row *sql.Row, key string) (snapshot.Document, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Document{}, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return snapshot.Document{}, err
	}
	return snapshot.Read(bytes.NewReader(payload))
}

// List returns every stored snapshot, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, nodes, segments, length(payload) FROM snapshots ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			id, ctime string
		)
		if err := rows.Scan(&id, &e.Name, &ctime, &e.Nodes, &e.Segments, &e.Bytes); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("row %s: %w", id, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, ctime); err != nil {
			return nil, fmt.Errorf("row %s: %w", id, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
