package searcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/searchgrep/searchgrep/pkg/types"
)

const (
	// DefaultMaxResults applies when the caller does not ask for a count.
	DefaultMaxResults = 10

	// HardResultLimit caps any request, however large.
	HardResultLimit = 50

	// dedupEpsilon collapses overlapping chunks from the same file whose
	// scores are this close. Overlap windows make adjacent chunks share
	// lines, so near-equal scores are the same hit twice.
	dedupEpsilon = 0.01
)

// QueryEmbedder encodes queries into the index's vector space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Index supplies the candidate chunks. Every chunk carries its vector.
type Index interface {
	Chunks() []*types.Chunk
}

// Options tune a single search.
type Options struct {
	// MaxResults caps the result count. Zero means DefaultMaxResults;
	// anything above HardResultLimit is clamped.
	MaxResults int

	// PathFilter, when set, restricts candidates to chunks whose file path
	// contains the substring. The filter applies before scoring.
	PathFilter string
}

// Searcher ranks indexed chunks against natural-language queries by fusing
// vector similarity with lexical term overlap.
type Searcher struct {
	embedder QueryEmbedder
}

// New creates a searcher that encodes queries with the given embedder. The
// embedder must produce vectors in the same space the index was built with.
func New(embedder QueryEmbedder) *Searcher {
	return &Searcher{embedder: embedder}
}

// Search scores every candidate chunk and returns the top results in
// descending score order. Ties break by file path, then start line, so equal
// scores always come back in the same order.
func (s *Searcher) Search(ctx context.Context, index Index, query string, opts Options) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if limit > HardResultLimit {
		limit = HardResultLimit
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := Rank(query, queryVec, index.Chunks(), opts.PathFilter)
	if err != nil {
		return nil, err
	}
	results = Dedup(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Rank scores chunks against the query vector and text, applies the path
// filter, and sorts. It is exported separately so callers holding a query
// vector (tests, the hybrid path) can rank without re-embedding.
func Rank(query string, queryVec []float32, chunks []*types.Chunk, pathFilter string) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	terms := queryTerms(query)

	results := make([]types.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		if pathFilter != "" && !strings.Contains(chunk.FilePath, pathFilter) {
			continue
		}
		// A dimension mismatch means the chunk was embedded in another
		// space; it cannot be scored against this query.
		if len(chunk.Vector) != len(queryVec) {
			continue
		}
		cos := cosineSimilarity(queryVec, chunk.Vector)
		lex := lexicalScore(terms, chunk.Content)
		results = append(results, types.SearchResult{
			Chunk: chunk,
			Score: fuse(cos, lex),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.FilePath != results[j].Chunk.FilePath {
			return results[i].Chunk.FilePath < results[j].Chunk.FilePath
		}
		return results[i].Chunk.StartLine < results[j].Chunk.StartLine
	})
	return results, nil
}

// Dedup collapses overlapping same-file chunks whose scores differ by less
// than dedupEpsilon, keeping the higher-ranked one. The input must already
// be sorted by descending score.
func Dedup(results []types.SearchResult) []types.SearchResult {
	out := results[:0]
	for _, r := range results {
		dup := false
		for _, kept := range out {
			if kept.Chunk.FilePath != r.Chunk.FilePath {
				continue
			}
			if !overlaps(kept.Chunk, r.Chunk) {
				continue
			}
			if kept.Score-r.Score < dedupEpsilon {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func overlaps(a, b *types.Chunk) bool {
	return a.StartLine <= b.EndLine && b.StartLine <= a.EndLine
}
