package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// mockBackend imitates the embedding sidecar with deterministic vectors
// derived from the text hash, so tests can assert exact values.
type mockBackend struct {
	server *httptest.Server

	mu         sync.Mutex
	healthy    bool
	dimensions map[string]int

	embedCalls  atomic.Int64
	healthCalls atomic.Int64
	failNext    atomic.Int64 // number of upcoming embed calls to 503
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	b := &mockBackend{
		healthy: true,
		dimensions: map[string]int{
			FastModel:     FastDimension,
			BalancedModel: BalancedDimension,
			QualityModel:  QualityDimension,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", b.handleHealth)
	mux.HandleFunc("/embeddings", b.handleEmbed)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *mockBackend) setHealthy(ok bool) {
	b.mu.Lock()
	b.healthy = ok
	b.mu.Unlock()
}

func (b *mockBackend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	b.healthCalls.Add(1)
	b.mu.Lock()
	ok := b.healthy
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (b *mockBackend) handleEmbed(w http.ResponseWriter, r *http.Request) {
	b.embedCalls.Add(1)
	if b.failNext.Load() > 0 {
		b.failNext.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	dim, ok := b.dimensions[req.Model]
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "unknown model"})
		return
	}

	resp := embedResponse{Model: req.Model, Dimension: dim}
	for _, text := range req.Texts {
		resp.Embeddings = append(resp.Embeddings, mockVector(req.Model, text, req.IsQuery, dim))
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func mockVector(model, text string, isQuery bool, dim int) []float32 {
	seed := model + "|" + text
	if isQuery {
		seed += "|q"
	}
	h := sha256.Sum256([]byte(seed))
	vec := make([]float32, dim)
	for i := range vec {
		word := binary.BigEndian.Uint32(h[(i*4)%28 : (i*4)%28+4])
		vec[i] = float32(word%2000)/1000.0 - 1.0
	}
	return vec
}

func newTestProvider(t *testing.T, b *mockBackend, cache *Cache) *SidecarProvider {
	t.Helper()
	return NewSidecarProvider(b.server.URL, BalancedModel, BalancedDimension, cache)
}

func TestEmbed_ReturnsVectorOfModelDimension(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, nil)

	vec, err := p.Embed(context.Background(), "func main() {}")
	require.NoError(t, err)
	assert.Len(t, vec, BalancedDimension)
}

func TestEmbed_Deterministic(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, nil)

	a, err := p.Embed(context.Background(), "retry with backoff")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "retry with backoff")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbed_CacheSkipsBackend(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, NewCache(128))

	_, err := p.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	first := backend.embedCalls.Load()

	vec, err := p.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	assert.Len(t, vec, BalancedDimension)
	assert.Equal(t, first, backend.embedCalls.Load(), "second call should be served from cache")
}

func TestEmbedQuery_DistinctFromDocumentEncoding(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, NewCache(128))

	doc, err := p.Embed(context.Background(), "error handling")
	require.NoError(t, err)
	query, err := p.EmbedQuery(context.Background(), "error handling")
	require.NoError(t, err)

	assert.NotEqual(t, doc, query, "query and document encodings must not share cache entries")
}

func TestEmbed_EmptyTextRejected(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, nil)

	_, err := p.Embed(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.Zero(t, backend.embedCalls.Load())
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, nil)

	texts := []string{"alpha", "beta", "gamma"}
	vecs, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, text := range texts {
		assert.Equal(t, mockVector(BalancedModel, text, false, BalancedDimension), vecs[i])
	}
}

func TestEmbedBatch_MixedCacheHitsAndMisses(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, NewCache(128))

	_, err := p.Embed(context.Background(), "beta")
	require.NoError(t, err)
	before := backend.embedCalls.Load()

	vecs, err := p.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, mockVector(BalancedModel, "beta", false, BalancedDimension), vecs[1])
	assert.Equal(t, before+1, backend.embedCalls.Load(), "only the two misses should reach the backend, in one request")
}

func TestEmbedBatch_EmptyInputRejected(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, nil)

	_, err := p.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrEmbedding)

	_, err = p.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, types.ErrEmbedding)
}

func TestEmbed_BackendDownIsModelLoadError(t *testing.T) {
	backend := newMockBackend(t)
	backend.setHealthy(false)
	p := newTestProvider(t, backend, nil)

	_, err := p.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrModelLoad)
}

func TestEmbed_RecoversAfterBackendComesUp(t *testing.T) {
	backend := newMockBackend(t)
	backend.setHealthy(false)
	p := newTestProvider(t, backend, nil)

	_, err := p.Embed(context.Background(), "anything")
	require.ErrorIs(t, err, types.ErrModelLoad)

	backend.setHealthy(true)
	vec, err := p.Embed(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, vec, BalancedDimension)
}

func TestEmbed_RetriesTransientFailure(t *testing.T) {
	backend := newMockBackend(t)
	p := newTestProvider(t, backend, nil)
	backend.failNext.Store(1)

	vec, err := p.Embed(context.Background(), "transient")
	require.NoError(t, err)
	assert.Len(t, vec, BalancedDimension)
	assert.GreaterOrEqual(t, backend.embedCalls.Load(), int64(2))
}

func TestEmbed_DimensionMismatchRejected(t *testing.T) {
	backend := newMockBackend(t)
	p := NewSidecarProvider(backend.server.URL, BalancedModel, 1024, nil)

	_, err := p.Embed(context.Background(), "wrong dim")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
}

func TestHybrid_ConcatenatesBothModels(t *testing.T) {
	backend := newMockBackend(t)
	general := NewSidecarProvider(backend.server.URL, BalancedModel, BalancedDimension, nil)
	code := NewSidecarProvider(backend.server.URL, QualityModel, QualityDimension, nil)
	h := NewHybridProvider(general, code)

	vec, err := h.Embed(context.Background(), "binary search tree")
	require.NoError(t, err)
	require.Len(t, vec, HybridDimension)

	gvec := mockVector(BalancedModel, "binary search tree", false, BalancedDimension)
	cvec := mockVector(QualityModel, "binary search tree", false, QualityDimension)
	assert.Equal(t, gvec, vec[:BalancedDimension])
	assert.Equal(t, cvec, vec[BalancedDimension:])
	assert.Equal(t, BalancedModel+"+"+QualityModel, h.ModelID())
}

func TestHybrid_BatchFusesPairwise(t *testing.T) {
	backend := newMockBackend(t)
	h := NewHybridProvider(
		NewSidecarProvider(backend.server.URL, BalancedModel, BalancedDimension, nil),
		NewSidecarProvider(backend.server.URL, QualityModel, QualityDimension, nil),
	)

	vecs, err := h.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, vec := range vecs {
		assert.Len(t, vec, HybridDimension)
	}
}

func TestRegistry_ConstructsOncePerMode(t *testing.T) {
	backend := newMockBackend(t)
	reg := NewRegistry(backend.server.URL, 0)

	a, err := reg.Get(types.ModeBalanced)
	require.NoError(t, err)
	b, err := reg.Get(types.ModeBalanced)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_HybridSharesTierProviders(t *testing.T) {
	backend := newMockBackend(t)
	reg := NewRegistry(backend.server.URL, 0)

	h, err := reg.Get(types.ModeHybrid)
	require.NoError(t, err)
	hybrid, ok := h.(*HybridProvider)
	require.True(t, ok)

	balanced, err := reg.Get(types.ModeBalanced)
	require.NoError(t, err)
	assert.Same(t, balanced, hybrid.general)
}

func TestRegistry_ConcurrentFirstCallersGetOneProvider(t *testing.T) {
	backend := newMockBackend(t)
	reg := NewRegistry(backend.server.URL, 0)

	const n = 8
	results := make([]Embedder, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := reg.Get(types.ModeQuality)
			assert.NoError(t, err)
			results[i] = e
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestRegistry_InvalidMode(t *testing.T) {
	reg := NewRegistry("", 0)
	_, err := reg.Get(types.Mode("turbo"))
	assert.ErrorIs(t, err, types.ErrInvalidMode)
}

func TestModelFor(t *testing.T) {
	assert.Equal(t, FastModel, ModelFor(types.ModeFast))
	assert.Equal(t, BalancedModel, ModelFor(types.ModeBalanced))
	assert.Equal(t, QualityModel, ModelFor(types.ModeQuality))
	assert.Equal(t, BalancedModel+"+"+QualityModel, ModelFor(types.ModeHybrid))
}

func TestDimensionFor(t *testing.T) {
	assert.Equal(t, 384, DimensionFor(types.ModeFast))
	assert.Equal(t, 768, DimensionFor(types.ModeBalanced))
	assert.Equal(t, 768, DimensionFor(types.ModeQuality))
	assert.Equal(t, 1536, DimensionFor(types.ModeHybrid))
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache(8)
	cache.Set("k", []float32{1, 2, 3})

	vec, ok := cache.Get("k")
	require.True(t, ok)
	vec[0] = 99

	again, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}
