// Package fileid provides deterministic identifiers for source documents and their chunks.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const prefix = "doc:"

// SourceID returns a stable identifier for a source name. Same name always yields the same ID.
func SourceID(source string) string {
	hash := sha256.Sum256([]byte(source))
	return prefix + hex.EncodeToString(hash[:8])
}

// ChunkID returns the identifier of chunk index within source. (source, index) pairs are
// unique in a store, so the ID is too.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s#%d", SourceID(source), index)
}
