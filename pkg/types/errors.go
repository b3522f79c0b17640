package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Configuration and query errors are caller mistakes; model
// and store errors are environmental and recoverable by reindexing or
// restarting the embedding backend.
var (
	// Configuration errors
	ErrInvalidMode = errors.New("invalid mode")
	ErrInvalidPath = errors.New("invalid path")

	// Embedding errors
	ErrModelLoad = errors.New("embedding backend unavailable")
	ErrEmbedding = errors.New("embedding failed")

	// Store errors. A missing store is a normal "not indexed" signal; a
	// corrupt or incompatible store is recoverable by a full reindex and is
	// never treated as an empty-but-valid index.
	ErrStoreNotFound     = errors.New("no index found")
	ErrStoreCorrupt      = errors.New("index is corrupt")
	ErrStoreIncompatible = errors.New("index was built with an incompatible schema or model")

	// Query errors
	ErrEmptyQuery = errors.New("query cannot be empty")

	// Search result validation errors
	ErrMissingChunk = errors.New("search result must reference a chunk")
	ErrInvalidScore = errors.New("score must be between 0 and 1")
)

// PartialIndexError aggregates per-file failures from a sync run. The run
// itself succeeded; the named files were skipped.
type PartialIndexError struct {
	Failures map[string]error // file path -> cause
}

func (e *PartialIndexError) Error() string {
	if len(e.Failures) == 0 {
		return "partial index: no failures"
	}
	parts := make([]string, 0, len(e.Failures))
	for path, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", path, err))
	}
	return fmt.Sprintf("partial index: %d file(s) skipped: %s",
		len(e.Failures), strings.Join(parts, "; "))
}

// IsNotIndexed reports whether err means the root has no usable index, either
// because none exists or because the existing one is unreadable under the
// active configuration.
func IsNotIndexed(err error) bool {
	return errors.Is(err, ErrStoreNotFound) ||
		errors.Is(err, ErrStoreCorrupt) ||
		errors.Is(err, ErrStoreIncompatible)
}
