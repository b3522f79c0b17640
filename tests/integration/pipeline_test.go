package integration

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/searchgrep/searchgrep/internal/embedder"
	"github.com/searchgrep/searchgrep/internal/searcher"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/internal/syncer"
	"github.com/searchgrep/searchgrep/pkg/types"
)

// PipelineTestSuite exercises the chunk, embed, persist, and search path
// end to end against a mock embedding backend.
type PipelineTestSuite struct {
	suite.Suite
	backend  *httptest.Server
	registry *embedder.Registry
	ctx      context.Context

	root    string
	dataDir string
	store   *store.Store
	syncer  *syncer.Syncer
}

func (s *PipelineTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.backend = startMockBackend()
	s.registry = embedder.NewRegistry(s.backend.URL, 1024)
}

func (s *PipelineTestSuite) TearDownSuite() {
	_ = s.registry.Close()
	s.backend.Close()
}

func (s *PipelineTestSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.dataDir = s.T().TempDir()

	mode := types.ModeFast
	path := store.SnapshotPath(s.dataDir, s.root, mode)
	s.store = store.New(path, s.root, mode, embedder.ModelFor(mode), embedder.DimensionFor(mode))

	emb, err := s.registry.Get(mode)
	s.Require().NoError(err)
	s.syncer = syncer.New(s.root, s.store, emb, syncer.Config{Workers: 2})
}

func (s *PipelineTestSuite) writeFile(relPath, content string) {
	path := filepath.Join(s.root, relPath)
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
}

func (s *PipelineTestSuite) search(query string, opts searcher.Options) []types.SearchResult {
	emb, err := s.registry.Get(types.ModeFast)
	s.Require().NoError(err)
	results, err := searcher.New(emb).Search(s.ctx, s.store, query, opts)
	s.Require().NoError(err)
	return results
}

func (s *PipelineTestSuite) TestIndexThenSearch() {
	s.writeFile("auth.py", "def issue_session_token(user):\n    return sign(user.id)\n")
	s.writeFile("math.py", "def add(a, b):\n    return a + b\n")

	stats, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.FilesIndexed)

	results := s.search("issue session token", searcher.Options{})
	s.Require().NotEmpty(results)
	s.Equal("auth.py", results[0].Chunk.FilePath)
}

func (s *PipelineTestSuite) TestResyncIsIdempotent() {
	s.writeFile("a.go", "package a\n\nfunc A() {}\n")
	s.writeFile("b.go", "package b\n\nfunc B() {}\n")

	_, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	before := s.store.ChunkCount()

	stats, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.FilesIndexed)
	s.Equal(2, stats.FilesUnchanged)
	s.Equal(0, stats.ChunksEmbedded)
	s.Equal(before, s.store.ChunkCount())
}

func (s *PipelineTestSuite) TestSingleLineEditReembedsOnlyAffectedChunks() {
	lines := make([]string, 250)
	for i := range lines {
		lines[i] = fmt.Sprintf("let value%d = compute(%d);", i, i)
	}
	s.writeFile("big.ts", strings.Join(lines, "\n")+"\n")

	stats, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, stats.ChunksEmbedded)

	lines[4] = "let value4 = computeFixed(4);"
	s.writeFile("big.ts", strings.Join(lines, "\n")+"\n")

	stats, err = s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.ChunksEmbedded)
	s.Equal(2, stats.ChunksReused)
}

func (s *PipelineTestSuite) TestSnapshotRoundTrip() {
	s.writeFile("svc.go", "package svc\n\nfunc Handle() {}\n")

	_, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)

	mode := types.ModeFast
	reloaded, err := store.Load(s.store.Path(), s.root, mode,
		embedder.ModelFor(mode), embedder.DimensionFor(mode))
	s.Require().NoError(err)
	s.Equal(s.store.ChunkCount(), reloaded.ChunkCount())
	s.Equal(s.store.FileCount(), reloaded.FileCount())

	emb, err := s.registry.Get(mode)
	s.Require().NoError(err)
	fresh, err := searcher.New(emb).Search(s.ctx, reloaded, "handle service", searcher.Options{})
	s.Require().NoError(err)
	s.NotEmpty(fresh)
}

func (s *PipelineTestSuite) TestMissingSnapshotReportsNotIndexed() {
	mode := types.ModeFast
	path := store.SnapshotPath(s.dataDir, filepath.Join(s.root, "nowhere"), mode)
	_, err := store.Load(path, s.root, mode, embedder.ModelFor(mode), embedder.DimensionFor(mode))
	s.Require().Error(err)
	s.True(types.IsNotIndexed(err))
}

func (s *PipelineTestSuite) TestDeletedFileLeavesIndex() {
	s.writeFile("keep.go", "package keep\n")
	s.writeFile("gone.go", "package gone\n")

	_, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, s.store.FileCount())

	s.Require().NoError(os.Remove(filepath.Join(s.root, "gone.go")))

	stats, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesRemoved)
	s.Equal(1, s.store.FileCount())

	for _, chunk := range s.store.Chunks() {
		s.NotEqual("gone.go", chunk.FilePath)
	}
}

func (s *PipelineTestSuite) TestLexicalOverlapRanksExactTermsFirst() {
	s.writeFile("a.py", "def retry_with_backoff(policy):\n    # retry backoff policy lives here\n    return policy.delay\n")
	s.writeFile("b.py", "def render_template(name):\n    return templates.get(name)\n")

	_, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)

	results := s.search("retry backoff policy", searcher.Options{})
	s.Require().NotEmpty(results)
	s.Equal("a.py", results[0].Chunk.FilePath)
}

func (s *PipelineTestSuite) TestMaxResultsClamped() {
	for i := 0; i < 60; i++ {
		s.writeFile(fmt.Sprintf("f%02d.go", i), fmt.Sprintf("package f%02d\n\nfunc Work() {}\n", i))
	}
	_, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)

	s.Len(s.search("work", searcher.Options{MaxResults: 3}), 3)
	s.Len(s.search("work", searcher.Options{MaxResults: 1000}), searcher.HardResultLimit)
}

func (s *PipelineTestSuite) TestSearchIsDeterministic() {
	s.writeFile("x.go", "package x\n\nfunc Parse() {}\n")
	s.writeFile("y.go", "package y\n\nfunc Parse() {}\n")
	s.writeFile("z.go", "package z\n\nfunc Parse() {}\n")

	_, err := s.syncer.Sync(s.ctx)
	s.Require().NoError(err)

	first := s.search("parse input", searcher.Options{})
	second := s.search("parse input", searcher.Options{})
	s.Require().Equal(len(first), len(second))
	for i := range first {
		s.Equal(first[i].Chunk.ID, second[i].Chunk.ID)
		s.Equal(first[i].Score, second[i].Score)
	}
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

// startMockBackend serves deterministic embeddings shaped like the local
// sidecar's API.
func startMockBackend() *httptest.Server {
	dims := map[string]int{
		embedder.FastModel:     embedder.FastDimension,
		embedder.BalancedModel: embedder.BalancedDimension,
		embedder.QualityModel:  embedder.QualityDimension,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts   []string `json:"texts"`
			Model   string   `json:"model"`
			IsQuery bool     `json:"is_query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		dim := dims[req.Model]
		vecs := make([][]float32, 0, len(req.Texts))
		for _, text := range req.Texts {
			vec := make([]float32, dim)
			var block [32]byte
			for i := range vec {
				if i%8 == 0 {
					block = sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", req.Model, text, i/8))
				}
				word := binary.BigEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
				vec[i] = float32(word%2000)/1000.0 - 1.0
			}
			vecs = append(vecs, vec)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model, "dimension": dim, "embeddings": vecs,
		})
	})
	return httptest.NewServer(mux)
}
