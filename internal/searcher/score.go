package searcher

import (
	"math"
	"strings"
	"unicode"
)

// Fusion weights. The vector score carries the ranking; the lexical overlap
// nudges exact-term matches above semantically similar but literally
// unrelated chunks.
const (
	vectorWeight  = 0.70
	lexicalWeight = 0.30
)

// cosineSimilarity returns the cosine of the angle between two vectors, or
// 0 when either has zero magnitude. Callers guarantee equal dimensions.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// lexicalScore is the fraction of distinct query terms appearing in the
// chunk text. Both sides are lowercased; terms split on any non-alphanumeric
// rune, so "retry_backoff" matches the query "retry backoff".
func lexicalScore(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	lowered := strings.ToLower(content)
	matched := 0
	for _, term := range queryTerms {
		if strings.Contains(lowered, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// queryTerms tokenizes the query into distinct lowercase terms.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

// fuse combines the cosine similarity and lexical overlap into the final
// score. Cosine is shifted from [-1, 1] into [0, 1] before weighting, and
// the result is clamped so float error cannot push it out of range.
func fuse(cosine, lexical float64) float64 {
	score := vectorWeight*(cosine+1)/2 + lexicalWeight*lexical
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
