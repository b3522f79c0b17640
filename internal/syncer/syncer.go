package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/searchgrep/searchgrep/internal/chunker"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/pkg/types"
)

// BatchEmbedder encodes chunk contents. The syncer only needs document
// batches; query encoding belongs to the searcher.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
	Dimension() int
}

// Config tunes a syncer.
type Config struct {
	Workers int // Concurrent file workers (default: runtime.NumCPU())
	Logger  *zap.Logger
}

// Stats summarizes one sync pass.
type Stats struct {
	FilesScanned   int
	FilesIndexed   int
	FilesUnchanged int
	FilesRemoved   int
	FilesSkipped   int
	ChunksEmbedded int
	ChunksReused   int
	Duration       time.Duration
}

// Syncer reconciles the store with the corpus on disk. Unchanged files are
// skipped by fingerprint; within a changed file, chunks whose identity
// survived the edit keep their stored vectors, so a one-line change
// re-embeds only the chunks containing that line.
type Syncer struct {
	root     string
	store    *store.Store
	chunker  *chunker.Chunker
	embedder BatchEmbedder
	workers  int
	logger   *zap.Logger
}

// New creates a syncer for the corpus rooted at root.
func New(root string, st *store.Store, emb BatchEmbedder, cfg Config) *Syncer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		root:     root,
		store:    st,
		chunker:  chunker.New(),
		embedder: emb,
		workers:  workers,
		logger:   logger,
	}
}

// Sync runs one reconciliation pass and persists the result. Files that
// fail to read, chunk, or embed are skipped with a warning and collected
// into a PartialIndexError; the rest of the corpus still indexes. Running
// Sync twice with no intervening edits leaves the store unchanged.
func (s *Syncer) Sync(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	files, err := discoverFiles(s.root, loadIgnoreRules(s.root))
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	stats.FilesScanned = len(files)

	seen := make(map[string]bool, len(files))
	var changed []string
	for _, relPath := range files {
		seen[relPath] = true
		content, err := os.ReadFile(filepath.Join(s.root, relPath))
		if err != nil {
			// Revisit below as a failure; keep it out of removal.
			changed = append(changed, relPath)
			continue
		}
		fp := types.ComputeFingerprint(content)
		if stored, ok := s.store.FileFingerprint(relPath); ok && stored == fp {
			stats.FilesUnchanged++
			continue
		}
		changed = append(changed, relPath)
	}

	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, relPath := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			embedded, reused, err := s.syncFile(gctx, relPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				stats.FilesSkipped++
				if errors.Is(err, chunker.ErrBinaryFile) || errors.Is(err, chunker.ErrFileTooLarge) {
					// Not indexable, not an error. Drop any stale chunks
					// from a previous text revision.
					s.logger.Debug("file not indexable",
						zap.String("path", relPath),
						zap.Error(err))
					s.store.RemoveFile(relPath)
					return nil
				}
				s.logger.Warn("skipping file",
					zap.String("path", relPath),
					zap.Error(err))
				failures[relPath] = err
				return nil
			}
			stats.FilesIndexed++
			stats.ChunksEmbedded += embedded
			stats.ChunksReused += reused
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, relPath := range s.store.Files() {
		if !seen[relPath] {
			s.store.RemoveFile(relPath)
			stats.FilesRemoved++
		}
	}

	if err := s.store.Save(); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	stats.Duration = time.Since(start)
	s.logger.Info("sync complete",
		zap.Int("scanned", stats.FilesScanned),
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("unchanged", stats.FilesUnchanged),
		zap.Int("removed", stats.FilesRemoved),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("embedded", stats.ChunksEmbedded),
		zap.Int("reused", stats.ChunksReused),
		zap.Duration("duration", stats.Duration))

	if len(failures) > 0 {
		return stats, &types.PartialIndexError{Failures: failures}
	}
	return stats, nil
}

// syncFile chunks one file, reuses vectors for chunks whose identity
// survived, embeds the rest, and swaps the file's chunk set in the store.
func (s *Syncer) syncFile(ctx context.Context, relPath string) (embedded, reused int, err error) {
	content, err := os.ReadFile(filepath.Join(s.root, relPath))
	if err != nil {
		return 0, 0, fmt.Errorf("read: %w", err)
	}

	chunks, err := s.chunker.ChunkFile(relPath, content)
	if err != nil {
		return 0, 0, err
	}

	var missing []*types.Chunk
	var texts []string
	for _, chunk := range chunks {
		if prev, ok := s.store.Chunk(chunk.ID); ok && len(prev.Vector) == s.embedder.Dimension() {
			chunk.Vector = prev.Vector
			chunk.Model = prev.Model
			reused++
			continue
		}
		missing = append(missing, chunk)
		texts = append(texts, chunk.Content)
	}

	if len(missing) > 0 {
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, 0, fmt.Errorf("embed: %w", err)
		}
		for i, chunk := range missing {
			chunk.Vector = vectors[i]
			chunk.Model = s.embedder.ModelID()
		}
		embedded = len(missing)
	}

	s.store.SetFile(relPath, types.ComputeFingerprint(content), chunks)
	return embedded, reused, nil
}
