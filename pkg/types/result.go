package types

// SearchResult is a single ranked hit with its fused relevance score.
type SearchResult struct {
	Chunk *Chunk
	Score float64 // Fused vector + lexical score in [0, 1]
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if sr.Chunk == nil {
		return ErrMissingChunk
	}

	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidScore
	}

	return sr.Chunk.Validate()
}
