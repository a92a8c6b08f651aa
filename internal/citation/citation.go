// Package citation numbers retrieved chunks and renders them into a context block with a
// citation-identifier to source-name mapping.
package citation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hyperjump/taxqa/internal/models"
)

// Delimiter separates passages in the rendered context block.
const Delimiter = "\n---\n"

// Assembled is the result of context assembly for one query.
type Assembled struct {
	// Block is the rendered context, empty when nothing was retrieved.
	Block string
	// Sources maps SRC-n to cleaned source names in rank order.
	Sources *models.SourceMap
	// Chunks are the input results with CitationID set.
	Chunks []models.RetrievedChunk
}

// ID returns the citation identifier for a 1-based rank.
func ID(rank int) string {
	return fmt.Sprintf("SRC-%d", rank)
}

// Assemble assigns SRC-1..SRC-n in the order given and renders each chunk as a header line
// naming its identifier and source, followed by its content.
func Assemble(results []models.RetrievedChunk) Assembled {
	out := Assembled{
		Sources: models.NewSourceMap(),
		Chunks:  make([]models.RetrievedChunk, len(results)),
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		id := ID(i + 1)
		r.CitationID = id
		out.Chunks[i] = r

		var source, content string
		if r.Chunk != nil {
			source, content = r.Chunk.Source, r.Chunk.Content
		}
		name := CleanSourceName(source)
		out.Sources.Add(id, name)
		blocks = append(blocks, fmt.Sprintf("[%s] Source: %s\n%s", id, name, content))
	}
	out.Block = strings.Join(blocks, Delimiter)
	return out
}

// CleanSourceName drops a trailing file extension, compared case-insensitively, and keeps any
// directory part so documents with the same file name in different folders stay distinct:
// "2023/NigeriaTaxAct.PDF" becomes "2023/NigeriaTaxAct". Backslash separators are written as
// slashes. A numeric suffix such as the one in "Finance Act 1.5" is not an extension and is kept.
func CleanSourceName(source string) string {
	name := strings.ReplaceAll(source, `\`, "/")
	base := strings.LastIndexByte(name, '/') + 1
	dot := strings.LastIndexByte(name, '.')
	if dot <= base || !isExtension(name[dot+1:]) {
		return name
	}
	return name[:dot]
}

// isExtension reports whether s looks like a file extension: 1 to 5 ASCII letters or digits
// including at least one letter.
func isExtension(s string) bool {
	if len(s) == 0 || len(s) > 5 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return hasLetter
}
