package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/taxqa/internal/models"
)

// SQLiteStore implements ChunkStore using SQLite. Vectors are stored as little-endian float32
// blobs; there is no native nearest-neighbour search, so retrieval must be exhaustive.
type SQLiteStore struct {
	db *sql.DB

	mu         sync.Mutex
	configured int
	dims       int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. An existing database fixes the
// dimension from its stored rows.
func NewSQLiteStore(dbPath string, dims int) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, configured: dims, dims: dims}
	if dims == 0 {
		var stored int
		err := db.QueryRow(`SELECT dimensions FROM document_chunks ORDER BY seq LIMIT 1`).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			_ = db.Close()
			return nil, fmt.Errorf("failed to read stored dimension: %w", err)
		default:
			s.dims = stored
		}
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS document_chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (source, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON document_chunks(source);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert stores chunks in a single transaction.
func (s *SQLiteStore) Insert(ctx context.Context, chunks ...*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dims, err := validateBatch(chunks, s.dims)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (id, source, content, chunk_index, embedding, dimensions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Content, c.ChunkIndex, encodeVector(c.Embedding), len(c.Embedding), c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dims = dims
	return nil
}

// DeleteAll removes every chunk.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks`); err != nil {
		return err
	}
	s.dims = s.configured
	return nil
}

// ScanAll returns all chunks with their vectors in insertion order.
func (s *SQLiteStore) ScanAll(ctx context.Context) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, content, chunk_index, embedding, created_at
		 FROM document_chunks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Content, &c.ChunkIndex, &blob, &c.CreatedAt); err != nil {
			return nil, err
		}
		if c.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Count returns the total number of chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
