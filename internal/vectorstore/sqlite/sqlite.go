// Package sqlite persists chunk vectors in a local SQLite file and searches
// them by brute-force cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/vectorstore"
)

const metaDimension = "dimension"

type Store struct {
	db *sqlx.DB

	mu        sync.RWMutex
	dimension int
}

type chunkRow struct {
	ID        string `db:"id"`
	Text      string `db:"text"`
	Metadata  string `db:"metadata"`
	Embedding string `db:"embedding"`
}

// Open connects to the database at path, creating it and its directory if
// needed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.loadDimension(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadDimension() error {
	var v string
	err := s.db.Get(&v, `SELECT value FROM meta WHERE key = ?`, metaDimension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dimension: %w", err)
	}
	d, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse stored dimension %q: %w", v, err)
	}
	s.dimension = d
	return nil
}

// Dimension returns the stored vector dimension, 0 before Init.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == dimension {
		return nil
	}
	if s.dimension != 0 {
		var n int
		if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunks`); err != nil {
			return fmt.Errorf("count chunks: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: store holds %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, dimension)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		metaDimension, strconv.Itoa(dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	dim := s.Dimension()
	for _, r := range records {
		if err := vectorstore.CheckDimension(dim, r.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, text, metadata, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", r.ID, err)
		}
		vec, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Text, string(md), string(vec)); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float64, k int, filter vectorstore.Filter) ([]vectorstore.Hit, error) {
	dim := s.Dimension()
	if dim == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDimension(dim, vector); err != nil {
		return nil, err
	}

	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, text, metadata, embedding FROM chunks ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}

	hits := make([]vectorstore.Hit, 0, len(rows))
	for _, row := range rows {
		var md manual.Record
		if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", row.ID, err)
		}
		if !filter.Matches(md) {
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(row.Embedding), &vec); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", row.ID, err)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("chunk %s: %w", row.ID, vectorstore.ErrDimensionMismatch)
		}
		hits = append(hits, vectorstore.Hit{
			ID:       row.ID,
			Text:     row.Text,
			Metadata: md,
			Score:    vectorstore.Cosine(vec, vector),
		})
	}
	return vectorstore.TopK(hits, k), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunks`); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Clear removes every chunk and forgets the dimension.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, metaDimension); err != nil {
		return fmt.Errorf("delete dimension: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.dimension = 0
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
