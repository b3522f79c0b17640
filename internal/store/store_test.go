package store

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgrep/searchgrep/pkg/types"
)

const (
	testModel = "test-model"
	testDim   = 4
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.idx")
	return New(path, "/src/project", types.ModeBalanced, testModel, testDim)
}

func makeChunk(t *testing.T, relPath string, startLine, endLine int, content string) *types.Chunk {
	t.Helper()
	fp := types.ComputeFingerprint([]byte(content))
	return &types.Chunk{
		ID:          types.ChunkID(relPath, startLine, endLine, fp),
		FilePath:    relPath,
		StartLine:   startLine,
		EndLine:     endLine,
		Content:     content,
		Fingerprint: fp,
		Vector:      []float32{1, 2, 3, 4},
		Model:       testModel,
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	a := makeChunk(t, "a.go", 1, 10, "package a")
	b := makeChunk(t, "b.go", 1, 5, "package b")
	s.SetFile("a.go", types.ComputeFingerprint([]byte("package a")), []*types.Chunk{a})
	s.SetFile("b.go", types.ComputeFingerprint([]byte("package b")), []*types.Chunk{b})

	require.NoError(t, s.Save())

	loaded, err := Load(s.Path(), "/src/project", types.ModeBalanced, testModel, testDim)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ChunkCount())
	assert.Equal(t, 2, loaded.FileCount())
	assert.Equal(t, s.Chunks(), loaded.Chunks())

	got, ok := loaded.Chunk(a.ID)
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.False(t, loaded.Dirty())
}

func TestLoad_MissingIsNotIndexed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.idx")
	_, err := Load(path, "/src/project", types.ModeBalanced, testModel, testDim)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreNotFound)
	assert.True(t, types.IsNotIndexed(err))
}

func TestLoad_CorruptIsNotIndexed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.idx")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	_, err := Load(path, "/src/project", types.ModeBalanced, testModel, testDim)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreCorrupt)
	assert.True(t, types.IsNotIndexed(err))
}

func TestLoad_ModeMismatchIsIncompatible(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save())

	_, err := Load(s.Path(), "/src/project", types.ModeQuality, testModel, testDim)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreIncompatible)
	assert.True(t, types.IsNotIndexed(err))
}

func TestLoad_RootMismatchIsIncompatible(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save())

	_, err := Load(s.Path(), "/src/other", types.ModeBalanced, testModel, testDim)
	assert.ErrorIs(t, err, types.ErrStoreIncompatible)
}

func TestLoad_SchemaVersionMismatchIsIncompatible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.idx")
	snap := snapshot{
		Meta: Metadata{
			SchemaVersion: SchemaVersion + 1,
			Root:          "/src/project",
			Mode:          types.ModeBalanced,
			Model:         testModel,
			Dimension:     testDim,
		},
	}
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&snap))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := Load(path, "/src/project", types.ModeBalanced, testModel, testDim)
	assert.ErrorIs(t, err, types.ErrStoreIncompatible)
}

func TestSave_ReplacesPreviousGeneration(t *testing.T) {
	s := newTestStore(t)
	a := makeChunk(t, "a.go", 1, 10, "v1")
	s.SetFile("a.go", types.ComputeFingerprint([]byte("v1")), []*types.Chunk{a})
	require.NoError(t, s.Save())

	b := makeChunk(t, "a.go", 1, 10, "v2")
	s.SetFile("a.go", types.ComputeFingerprint([]byte("v2")), []*types.Chunk{b})
	require.NoError(t, s.Save())

	loaded, err := Load(s.Path(), "/src/project", types.ModeBalanced, testModel, testDim)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.ChunkCount())
	_, ok := loaded.Chunk(a.ID)
	assert.False(t, ok, "old generation chunk should be gone")
	_, ok = loaded.Chunk(b.ID)
	assert.True(t, ok)

	// The save path must not leave temp files behind.
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSetFile_DropsStaleChunks(t *testing.T) {
	s := newTestStore(t)
	old1 := makeChunk(t, "a.go", 1, 10, "one")
	old2 := makeChunk(t, "a.go", 11, 20, "two")
	s.SetFile("a.go", types.ComputeFingerprint([]byte("onetwo")), []*types.Chunk{old1, old2})

	// The file shrank to a single chunk; the survivor keeps its ID.
	s.SetFile("a.go", types.ComputeFingerprint([]byte("one")), []*types.Chunk{old1})

	assert.Equal(t, 1, s.ChunkCount())
	_, ok := s.Chunk(old2.ID)
	assert.False(t, ok)
	_, ok = s.Chunk(old1.ID)
	assert.True(t, ok)
}

func TestRemoveFile_DropsChunksAndFingerprint(t *testing.T) {
	s := newTestStore(t)
	a := makeChunk(t, "a.go", 1, 10, "aaa")
	b := makeChunk(t, "b.go", 1, 10, "bbb")
	s.SetFile("a.go", types.ComputeFingerprint([]byte("aaa")), []*types.Chunk{a})
	s.SetFile("b.go", types.ComputeFingerprint([]byte("bbb")), []*types.Chunk{b})

	s.RemoveFile("a.go")

	assert.Equal(t, 1, s.ChunkCount())
	assert.Equal(t, []string{"b.go"}, s.Files())
	_, ok := s.FileFingerprint("a.go")
	assert.False(t, ok)
}

func TestChunks_OrderedByPathThenLine(t *testing.T) {
	s := newTestStore(t)
	c1 := makeChunk(t, "b.go", 1, 10, "x")
	c2 := makeChunk(t, "a.go", 50, 60, "y")
	c3 := makeChunk(t, "a.go", 1, 10, "z")
	s.Upsert(c1, c2, c3)

	chunks := s.Chunks()
	require.Len(t, chunks, 3)
	assert.Equal(t, "a.go", chunks[0].FilePath)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, "a.go", chunks[1].FilePath)
	assert.Equal(t, 50, chunks[1].StartLine)
	assert.Equal(t, "b.go", chunks[2].FilePath)
}

func TestChunk_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	c := makeChunk(t, "a.go", 1, 10, "x")
	s.Upsert(c)

	got, ok := s.Chunk(c.ID)
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := s.Chunk(c.ID)
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestDirty_TracksUnsavedChanges(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Dirty())

	s.Upsert(makeChunk(t, "a.go", 1, 10, "x"))
	assert.True(t, s.Dirty())

	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())
}

func TestSnapshotPath_DistinctPerRootAndMode(t *testing.T) {
	a := SnapshotPath("/data", "/src/one", types.ModeBalanced)
	b := SnapshotPath("/data", "/src/two", types.ModeBalanced)
	c := SnapshotPath("/data", "/src/one", types.ModeHybrid)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, SnapshotPath("/data", "/src/one", types.ModeBalanced))
}
