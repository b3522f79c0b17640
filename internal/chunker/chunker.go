package chunker

import (
	"bytes"
	"errors"
	"strings"

	"github.com/searchgrep/searchgrep/pkg/types"
)

const (
	// MaxChunkLines is the maximum number of lines per chunk.
	MaxChunkLines = 100

	// OverlapLines is the number of trailing lines repeated at the start of
	// the next chunk to preserve context across boundaries.
	OverlapLines = 10

	// MaxFileBytes is the size ceiling above which a file is skipped.
	MaxFileBytes = 1 << 20

	// binarySniffLen is how many leading bytes are inspected for NUL bytes
	// when detecting binary content.
	binarySniffLen = 8192
)

// Skip signals. Callers treat both as "file not indexable", not as failures.
var (
	ErrBinaryFile   = errors.New("binary file")
	ErrFileTooLarge = errors.New("file exceeds size ceiling")
)

// Region is one chunk boundary decision: a 1-based inclusive line range and
// the text it covers.
type Region struct {
	StartLine int
	EndLine   int
	Content   string
}

// Chunker splits file content into bounded, overlapping regions. Splitting is
// purely a function of the input bytes, so identical content always produces
// identical boundaries. Chunk IDs and incremental sync both depend on that.
type Chunker struct {
	maxLines int
	overlap  int
	maxBytes int
}

// New creates a Chunker with the default limits.
func New() *Chunker {
	return &Chunker{
		maxLines: MaxChunkLines,
		overlap:  OverlapLines,
		maxBytes: MaxFileBytes,
	}
}

// NewWithLimits creates a Chunker with explicit limits, mainly for tests.
func NewWithLimits(maxLines, overlap, maxBytes int) *Chunker {
	if maxLines <= 0 {
		maxLines = MaxChunkLines
	}
	if overlap < 0 || overlap >= maxLines {
		overlap = 0
	}
	if maxBytes <= 0 {
		maxBytes = MaxFileBytes
	}
	return &Chunker{maxLines: maxLines, overlap: overlap, maxBytes: maxBytes}
}

// Split divides content into ordered regions. Empty content yields zero
// regions. Binary or oversized content returns ErrBinaryFile or
// ErrFileTooLarge.
func (c *Chunker) Split(content []byte) ([]Region, error) {
	if len(content) == 0 {
		return nil, nil
	}

	if len(content) > c.maxBytes {
		return nil, ErrFileTooLarge
	}

	if isBinary(content) {
		return nil, ErrBinaryFile
	}

	lines := strings.Split(string(content), "\n")

	// A trailing newline produces one empty final element; dropping it keeps
	// line ranges aligned with what editors display.
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var regions []Region
	start := 0
	for start < len(lines) {
		end := start + c.maxLines
		if end >= len(lines) {
			end = len(lines)
		} else {
			end = c.cutPoint(lines, start, end)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			regions = append(regions, Region{
				StartLine: start + 1,
				EndLine:   end,
				Content:   text,
			})
		}

		if end >= len(lines) {
			break
		}
		start = end - c.overlap
	}

	return regions, nil
}

// ChunkFile splits content and materializes chunks for the given relative
// path. Vectors are left nil; the synchronizer fills them in after embedding.
func (c *Chunker) ChunkFile(relPath string, content []byte) ([]*types.Chunk, error) {
	regions, err := c.Split(content)
	if err != nil {
		return nil, err
	}

	chunks := make([]*types.Chunk, 0, len(regions))
	for _, r := range regions {
		fp := types.ComputeFingerprint([]byte(r.Content))
		chunks = append(chunks, &types.Chunk{
			ID:          types.ChunkID(relPath, r.StartLine, r.EndLine, fp),
			FilePath:    relPath,
			StartLine:   r.StartLine,
			EndLine:     r.EndLine,
			Content:     r.Content,
			Fingerprint: fp,
		})
	}

	return chunks, nil
}

// cutPoint moves a would-be boundary at end back to the last blank line in
// the second half of the window, so chunks tend to break between
// declarations rather than inside them. The scan is bounded, so the choice
// stays deterministic.
func (c *Chunker) cutPoint(lines []string, start, end int) int {
	floor := start + c.maxLines/2
	for i := end - 1; i > floor; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			return i + 1
		}
	}
	return end
}

// isBinary reports whether content looks like binary data. A NUL byte in the
// leading window is the same heuristic git uses.
func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}
