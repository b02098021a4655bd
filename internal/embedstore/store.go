// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embedstore keeps embedding vectors in a local SQLite database and
// ranks them against a query vector by cosine similarity.
package embedstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrLengthMismatch = errors.New("texts and vectors differ in length")
	ErrEmptyVector    = errors.New("empty vector")
)

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
    id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    text TEXT NOT NULL,
    dims INTEGER NOT NULL,
    vector BLOB NOT NULL,       -- little-endian float32
    created_at INTEGER NOT NULL -- Unix nanoseconds
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_embeddings_model_text ON embeddings(model, text);
`

// =============================================================================
// STORE
// =============================================================================

// Entry is one stored text and its vector.
type Entry struct {
	ID        string
	Model     string
	Text      string
	Vector    []float32
	CreatedAt time.Time
}

// Match is a search hit. Score is the cosine similarity in [-1, 1].
type Match struct {
	Entry
	Score float64
}

// Store is a SQLite-backed embedding store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores texts[i] with vectors[i] under model. Texts are NFC-normalized;
// storing the same text again for a model replaces its vector and keeps its
// ID.
func (s *Store) Put(ctx context.Context, model string, texts []string, vectors [][]float32) ([]Entry, error) {
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ErrLengthMismatch, len(texts), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (id, model, text, dims, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(model, text) DO UPDATE SET
			dims = excluded.dims,
			vector = excluded.vector,
			created_at = excluded.created_at
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	entries := make([]Entry, len(texts))
	for i, text := range texts {
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyVector)
		}
		e := Entry{
			Model:     model,
			Text:      norm.NFC.String(text),
			Vector:    vectors[i],
			CreatedAt: now,
		}
		err := stmt.QueryRowContext(ctx,
			uuid.NewString(), e.Model, e.Text, len(e.Vector), encodeVector(e.Vector), now.UnixNano(),
		).Scan(&e.ID)
		if err != nil {
			return nil, fmt.Errorf("store text %d: %w", i, err)
		}
		entries[i] = e
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Search returns up to limit entries for model ranked by cosine similarity
// to query, best first. Entries whose dimension differs from the query are
// skipped. limit <= 0 returns every match.
func (s *Store) Search(ctx context.Context, model string, query []float32, limit int) ([]Match, error) {
	if len(query) == 0 {
		return nil, ErrEmptyVector
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, vector, created_at FROM embeddings
		WHERE model = ? AND dims = ?`, model, len(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			blob []byte
			ts   int64
		)
		if err := rows.Scan(&m.ID, &m.Text, &blob, &ts); err != nil {
			return nil, err
		}
		m.Model = model
		m.Vector = decodeVector(blob)
		m.CreatedAt = time.Unix(0, ts).UTC()
		m.Score = Cosine(query, m.Vector)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns how many entries are stored for model, or for all models
// when model is empty.
func (s *Store) Count(ctx context.Context, model string) (int, error) {
	var n int
	var err error
	if model == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE model = ?`, model).Scan(&n)
	}
	return n, err
}

// =============================================================================
// VECTOR HELPERS
// =============================================================================

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// length or magnitude. a and b must have the same length.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
