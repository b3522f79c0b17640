// Package searcher ranks indexed chunks against natural-language queries.
//
// Scoring is a fixed fusion of two signals: cosine similarity between the
// query vector and each chunk vector (weight 0.70, shifted into [0, 1]), and
// the fraction of distinct query terms literally present in the chunk text
// (weight 0.30). The fused score always lands in [0, 1], higher is better.
//
// Results come back in descending score order with deterministic tie-breaks
// by file path and start line. Overlapping chunks from the same file with
// near-equal scores collapse to the single best hit, so a match sitting in
// an overlap window does not occupy two result slots.
package searcher
