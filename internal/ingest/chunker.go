package ingest

import (
	"strings"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/internal/fileid"
	"github.com/hyperjump/taxqa/internal/models"
)

// Chunker splits text into consecutive, non-overlapping word windows.
type Chunker struct {
	size int
}

// NewChunker creates a chunker producing at most size words per chunk. A non-positive size
// falls back to config.DefaultChunkSize.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = config.DefaultChunkSize
	}
	return &Chunker{size: size}
}

// Size returns the maximum words per chunk.
func (c *Chunker) Size() int {
	return c.size
}

// Chunk splits text on whitespace and groups the words into chunks of at most Size words.
// Chunk indexes start at 0 and IDs are derived from source and index. Empty or
// whitespace-only text yields nil.
func (c *Chunker) Chunk(source, text string) []*models.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]*models.DocumentChunk, 0, (len(words)+c.size-1)/c.size)
	for start := 0; start < len(words); start += c.size {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		idx := len(chunks)
		chunks = append(chunks, &models.DocumentChunk{
			ID:         fileid.ChunkID(source, idx),
			Source:     source,
			Content:    strings.Join(words[start:end], " "),
			ChunkIndex: idx,
		})
	}
	return chunks
}

// Preprocess trims text and collapses every whitespace run to a single space. Joining the
// contents of Chunk's output with single spaces reproduces Preprocess of the same text.
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
