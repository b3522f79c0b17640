package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// SchemaVersion is bumped whenever the snapshot layout changes. A snapshot
// written under a different version is incompatible and triggers a full
// reindex rather than a migration.
const SchemaVersion = 1

// Metadata describes the corpus a snapshot was built from. Mode and Model
// pin the embedding space: vectors from a different model are never
// comparable, so a mismatch invalidates the whole store.
type Metadata struct {
	SchemaVersion int
	Root          string
	Mode          types.Mode
	Model         string
	Dimension     int
	UpdatedAt     time.Time
}

// snapshot is the on-disk gob payload. Chunks are flattened to a slice so
// the encoding is deterministic given the same contents.
type snapshot struct {
	Meta   Metadata
	Chunks []*types.Chunk
	Files  map[string][32]byte
}

// Store is an in-memory chunk index with durable whole-snapshot persistence.
// Reads take a shared lock; mutation and Save take the exclusive lock, so a
// search never observes a half-applied sync.
type Store struct {
	mu     sync.RWMutex
	meta   Metadata
	chunks map[string]*types.Chunk
	files  map[string][32]byte
	path   string
	dirty  bool
}

// New creates an empty store that will persist to path.
func New(path, root string, mode types.Mode, model string, dimension int) *Store {
	return &Store{
		meta: Metadata{
			SchemaVersion: SchemaVersion,
			Root:          root,
			Mode:          mode,
			Model:         model,
			Dimension:     dimension,
		},
		chunks: make(map[string]*types.Chunk),
		files:  make(map[string][32]byte),
		path:   path,
	}
}

// Load reads a snapshot from path. A missing file returns
// types.ErrStoreNotFound, an undecodable file types.ErrStoreCorrupt, and a
// schema or embedding-space mismatch types.ErrStoreIncompatible. All three
// mean the same thing to callers: the corpus is not indexed under the
// requested configuration.
func Load(path, root string, mode types.Mode, model string, dimension int) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrStoreCorrupt, err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreCorrupt, err)
	}

	if snap.Meta.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: snapshot schema %d, want %d",
			types.ErrStoreIncompatible, snap.Meta.SchemaVersion, SchemaVersion)
	}
	if snap.Meta.Mode != mode || snap.Meta.Model != model || snap.Meta.Dimension != dimension {
		return nil, fmt.Errorf("%w: snapshot built with mode=%s model=%s dim=%d, want mode=%s model=%s dim=%d",
			types.ErrStoreIncompatible,
			snap.Meta.Mode, snap.Meta.Model, snap.Meta.Dimension,
			mode, model, dimension)
	}
	if snap.Meta.Root != root {
		return nil, fmt.Errorf("%w: snapshot indexes %s, want %s",
			types.ErrStoreIncompatible, snap.Meta.Root, root)
	}

	s := &Store{
		meta:   snap.Meta,
		chunks: make(map[string]*types.Chunk, len(snap.Chunks)),
		files:  snap.Files,
		path:   path,
	}
	if s.files == nil {
		s.files = make(map[string][32]byte)
	}
	for _, chunk := range snap.Chunks {
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStoreCorrupt, err)
		}
		if len(chunk.Vector) != dimension {
			return nil, fmt.Errorf("%w: chunk %s has vector dimension %d, want %d",
				types.ErrStoreCorrupt, chunk.ID, len(chunk.Vector), dimension)
		}
		s.chunks[chunk.ID] = chunk
	}
	return s, nil
}

// Save writes the full snapshot to disk. The next generation is written to a
// temp file in the same directory, synced, then renamed over the previous
// one, so a crash mid-save leaves the prior snapshot intact.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta.UpdatedAt = time.Now().UTC()
	snap := snapshot{
		Meta:   s.meta,
		Chunks: s.orderedChunksLocked(),
		Files:  s.files,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := atomicWriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.dirty = false
	return nil
}

// Upsert inserts or replaces chunks by ID.
func (s *Store) Upsert(chunks ...*types.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	s.dirty = true
}

// SetFile records the per-file content fingerprint along with the IDs of the
// chunks the file currently produces. Chunks previously attributed to the
// file but absent from keep are dropped.
func (s *Store) SetFile(relPath string, fingerprint [32]byte, keep []*types.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepIDs := make(map[string]bool, len(keep))
	for _, chunk := range keep {
		keepIDs[chunk.ID] = true
	}
	for id, chunk := range s.chunks {
		if chunk.FilePath == relPath && !keepIDs[id] {
			delete(s.chunks, id)
		}
	}
	for _, chunk := range keep {
		s.chunks[chunk.ID] = chunk
	}
	s.files[relPath] = fingerprint
	s.dirty = true
}

// RemoveFile drops a file's fingerprint and every chunk attributed to it.
func (s *Store) RemoveFile(relPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, relPath)
	for id, chunk := range s.chunks {
		if chunk.FilePath == relPath {
			delete(s.chunks, id)
		}
	}
	s.dirty = true
}

// FileFingerprint returns the stored fingerprint for relPath, if indexed.
func (s *Store) FileFingerprint(relPath string) ([32]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.files[relPath]
	return fp, ok
}

// Files returns the indexed file paths.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Chunk returns a copy of the chunk with the given ID.
func (s *Store) Chunk(id string) (*types.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, false
	}
	return chunk.Clone(), true
}

// Chunks returns copies of every chunk, ordered by file path then start
// line. Copies keep callers from mutating indexed vectors.
func (s *Store) Chunks() []*types.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.orderedChunksLocked()
	out := make([]*types.Chunk, len(ordered))
	for i, chunk := range ordered {
		out[i] = chunk.Clone()
	}
	return out
}

func (s *Store) orderedChunksLocked() []*types.Chunk {
	out := make([]*types.Chunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		out = append(out, chunk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ChunkCount returns the number of indexed chunks.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// FileCount returns the number of indexed files.
func (s *Store) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Meta returns a copy of the snapshot metadata.
func (s *Store) Meta() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Dirty reports whether the store has unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}
