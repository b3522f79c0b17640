// Package types contains the shared data model for the searchgrep index:
// chunks, search results, embedding mode tiers and the error taxonomy used
// across the chunker, embedder, store, syncer and searcher.
//
// A Chunk is the unit of indexing and retrieval: a bounded region of one
// file plus the embedding vector computed from its content. Chunk IDs are a
// deterministic function of file path, line range and content fingerprint,
// so an unchanged region keeps its ID (and its embedding) across re-index
// runs while an edited region is recreated under a new ID.
package types
