// Package models defines core data structures for chunks, retrieval results, and chat exchanges.
package models

import "time"

// DocumentChunk is the unit of retrievable knowledge. Chunks are created once during
// ingestion and never modified; a full re-ingestion replaces all of them.
type DocumentChunk struct {
	ID         string    `json:"id" db:"id"`
	Source     string    `json:"source" db:"source"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// RetrievedChunk is a query-scoped view of a stored chunk with its similarity to the query.
// CitationID is empty until the context assembler numbers the results.
type RetrievedChunk struct {
	Chunk      *DocumentChunk `json:"chunk"`
	Similarity float64        `json:"similarity"`
	CitationID string         `json:"citation_id,omitempty"`
}
