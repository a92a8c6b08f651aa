package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/hyperjump/taxqa/internal/models"
)

// maxEFSearch is the upper bound pgvector accepts for hnsw.ef_search.
const maxEFSearch = 1000

type pgChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`

	Seq        int64           `bun:"seq,pk,autoincrement"`
	ID         string          `bun:"id,notnull"`
	Source     string          `bun:"source,notnull"`
	Content    string          `bun:"content,notnull"`
	ChunkIndex int             `bun:"chunk_index,notnull"`
	Embedding  pgvector.Vector `bun:"embedding,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`
	Similarity float64         `bun:"similarity,scanonly"`
}

func (r *pgChunk) toModel() *models.DocumentChunk {
	return &models.DocumentChunk{
		ID:         r.ID,
		Source:     r.Source,
		Content:    r.Content,
		ChunkIndex: r.ChunkIndex,
		Embedding:  r.Embedding.Slice(),
		CreatedAt:  r.CreatedAt,
	}
}

// PostgresStore implements ChunkStore and NearestNeighborSearcher on PostgreSQL with the
// pgvector extension. Nearest-neighbour queries use an HNSW cosine index.
type PostgresStore struct {
	db    *bun.DB
	table string
	dims  int
}

// NewPostgresStore connects to dsn, creates the pgvector extension, table and HNSW index if
// needed. dims must be positive because the index requires a fixed column dimension.
func NewPostgresStore(ctx context.Context, dsn, table string, dims int, debug bool) (*PostgresStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("postgres store: embedding dimensions must be configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithEnabled(debug), bundebug.WithVerbose(true)))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := &PostgresStore{db: db, table: table, dims: dims}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []struct {
		query string
		args  []interface{}
	}{
		{"CREATE EXTENSION IF NOT EXISTS vector", nil},
		{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ? (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source, chunk_index)
		)`, s.dims), []interface{}{bun.Ident(s.table)}},
		{"CREATE INDEX IF NOT EXISTS ? ON ? USING hnsw (embedding vector_cosine_ops)",
			[]interface{}{bun.Ident(s.table + "_embedding_idx"), bun.Ident(s.table)}},
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st.query, st.args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) tableExpr() (string, bun.Ident) {
	return "? AS dc", bun.Ident(s.table)
}

// Insert stores chunks with one multi-row INSERT.
func (s *PostgresStore) Insert(ctx context.Context, chunks ...*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if _, err := validateBatch(chunks, s.dims); err != nil {
		return err
	}
	now := time.Now()
	rows := make([]pgChunk, len(chunks))
	for i, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		rows[i] = pgChunk{
			ID:         c.ID,
			Source:     c.Source,
			Content:    c.Content,
			ChunkIndex: c.ChunkIndex,
			Embedding:  pgvector.NewVector(c.Embedding),
			CreatedAt:  c.CreatedAt,
		}
	}
	expr, ident := s.tableExpr()
	_, err := s.db.NewInsert().Model(&rows).ModelTableExpr(expr, ident).Exec(ctx)
	return err
}

// DeleteAll truncates the table.
func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE ? RESTART IDENTITY", bun.Ident(s.table))
	return err
}

// ScanAll returns all chunks in insertion order.
func (s *PostgresStore) ScanAll(ctx context.Context) ([]*models.DocumentChunk, error) {
	var rows []pgChunk
	expr, ident := s.tableExpr()
	if err := s.db.NewSelect().Model(&rows).ModelTableExpr(expr, ident).Order("seq").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*models.DocumentChunk, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	expr, ident := s.tableExpr()
	return s.db.NewSelect().Model((*pgChunk)(nil)).ModelTableExpr(expr, ident).Count(ctx)
}

// NearestNeighbors runs an HNSW cosine search. candidates sets hnsw.ef_search for the query,
// which bounds how many index entries are examined. Equal distances keep insertion order.
func (s *PostgresStore) NearestNeighbors(ctx context.Context, vector []float32, candidates, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	if candidates < limit {
		candidates = limit
	}
	if candidates > maxEFSearch {
		candidates = maxEFSearch
	}
	q := pgvector.NewVector(vector)
	var rows []pgChunk
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", candidates)); err != nil {
			return err
		}
		// The inner query alone lets HNSW drive the scan; ties are broken by seq afterwards.
		expr, ident := s.tableExpr()
		pool := tx.NewSelect().
			TableExpr(expr, ident).
			ColumnExpr("dc.*").
			ColumnExpr("dc.embedding <=> ? AS distance", q).
			OrderExpr("dc.embedding <=> ?", q).
			Limit(candidates)
		return tx.NewSelect().
			Model(&rows).
			ModelTableExpr("(?) AS dc", pool).
			ColumnExpr("dc.seq, dc.id, dc.source, dc.content, dc.chunk_index, dc.embedding, dc.created_at").
			ColumnExpr("1 - dc.distance AS similarity").
			OrderExpr("dc.distance ASC, dc.seq ASC").
			Limit(limit).
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbour query: %w", err)
	}
	out := make([]ScoredChunk, len(rows))
	for i := range rows {
		out[i] = ScoredChunk{Chunk: rows[i].toModel(), Similarity: rows[i].Similarity}
	}
	return out, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
