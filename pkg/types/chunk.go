package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Chunk is an addressable slice of a file's text together with its embedding.
type Chunk struct {
	// Identification
	ID       string
	FilePath string // Relative to the indexed root

	// Location
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive

	// Content
	Content     string
	Fingerprint [32]byte // SHA-256 of Content

	// Embedding
	Vector []float32
	Model  string
}

// ComputeFingerprint returns the SHA-256 content fingerprint used for
// change detection.
func ComputeFingerprint(content []byte) [32]byte {
	return sha256.Sum256(content)
}

// ChunkID derives the deterministic chunk identifier from the file path, the
// line range and the content fingerprint. The ID is stable across re-indexing
// unless the chunk's boundaries or content change, which is what makes
// incremental updates possible.
func ChunkID(filePath string, startLine, endLine int, fingerprint [32]byte) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%d-%d:%s",
		filePath, startLine, endLine, hex.EncodeToString(fingerprint[:])))
	return hex.EncodeToString(h[:16])
}

// Validate performs basic sanity checks on the chunk.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID cannot be empty")
	}

	if c.FilePath == "" {
		return errors.New("chunk file path cannot be empty")
	}

	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	var zeroHash [32]byte
	if c.Fingerprint == zeroHash {
		return errors.New("content fingerprint must be computed")
	}

	return nil
}

// Clone returns a deep copy of the chunk. The store hands out clones so a
// writer replacing a chunk can never race a reader scoring it.
func (c *Chunk) Clone() *Chunk {
	dup := *c
	if c.Vector != nil {
		dup.Vector = make([]float32, len(c.Vector))
		copy(dup.Vector, c.Vector)
	}
	return &dup
}
