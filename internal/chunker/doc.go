// Package chunker divides file content into bounded, overlapping regions for
// embedding and search.
//
// # Basic Usage
//
//	c := chunker.New()
//	chunks, err := c.ChunkFile("internal/server.go", content)
//	if err != nil {
//	    // chunker.ErrBinaryFile / chunker.ErrFileTooLarge mean "skip",
//	    // not "fail"
//	}
//
// # Chunking Strategy
//
// Content is split into windows of at most MaxChunkLines lines. Each window
// after the first repeats the previous window's last OverlapLines lines so
// that context spanning a boundary is still searchable. When a window would
// end mid-block, the boundary is pulled back to the nearest blank line in the
// window's second half.
//
// Splitting is deterministic: identical input always yields identical
// boundaries. Chunk IDs are derived from path, line range and content
// fingerprint, so determinism here is what keeps incremental sync from
// re-embedding unchanged regions.
//
// Empty files yield zero chunks. Files larger than MaxFileBytes or containing
// NUL bytes in their leading window are reported as skippable.
package chunker
