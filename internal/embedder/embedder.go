package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// Model identifiers per tier. All vectors produced under one tier share one
// fixed dimensionality; vectors from different tiers are never comparable.
const (
	FastModel     = "BAAI/bge-small-en-v1.5"
	BalancedModel = "BAAI/bge-base-en-v1.5"
	QualityModel  = "jinaai/jina-embeddings-v2-base-code"

	FastDimension     = 384
	BalancedDimension = 768
	QualityDimension  = 768

	// HybridDimension is the concatenation of the balanced and quality
	// vectors. Concatenation is the fixed fusion strategy: a hybrid store
	// only ever holds hybrid vectors, so comparability is preserved.
	HybridDimension = BalancedDimension + QualityDimension

	// MaxBatchSize caps the number of texts per backend request.
	MaxBatchSize = 64

	// DefaultCacheSize is the embedding cache capacity when none is
	// configured.
	DefaultCacheSize = 10000
)

// Embedder maps text to a fixed-length vector in the model's space.
//
// Implementations serialize access to the underlying model: a loaded model is
// not assumed safe for concurrent calls, so concurrent callers queue rather
// than triggering a second load.
type Embedder interface {
	// Embed encodes document text (a chunk).
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery encodes query text. Some models apply a different task
	// instruction to queries than to documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch encodes a batch of document texts in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector length for this embedder.
	Dimension() int

	// ModelID identifies the model (or fused model pair) producing vectors.
	ModelID() string

	// Close releases backend resources.
	Close() error
}

// ModelFor returns the model identifier recorded in stores built under the
// given mode.
func ModelFor(mode types.Mode) string {
	switch mode {
	case types.ModeFast:
		return FastModel
	case types.ModeQuality:
		return QualityModel
	case types.ModeHybrid:
		return BalancedModel + "+" + QualityModel
	default:
		return BalancedModel
	}
}

// DimensionFor returns the vector length for the given mode.
func DimensionFor(mode types.Mode) int {
	switch mode {
	case types.ModeFast:
		return FastDimension
	case types.ModeQuality:
		return QualityDimension
	case types.ModeHybrid:
		return HybridDimension
	default:
		return BalancedDimension
	}
}

// Cache is an in-memory LRU of vectors keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size, which is handled above.
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so callers cannot mutate the
// cached value.
func (c *Cache) Get(key string) ([]float32, bool) {
	vec, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	dup := make([]float32, len(vec))
	copy(dup, vec)
	return dup, true
}

// Set stores a vector; LRU eviction handles capacity.
func (c *Cache) Set(key string, vec []float32) {
	c.cache.Add(key, vec)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// cacheKey scopes the content hash by model and text role so query and
// document encodings of the same text never collide.
func cacheKey(model, role, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + role + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// validateText rejects input the backend cannot encode. Callers are expected
// to filter empty chunks before embedding; reaching here with one is an
// EmbeddingError.
func validateText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty text", types.ErrEmbedding)
	}
	return nil
}

func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", types.ErrEmbedding)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", types.ErrEmbedding, i)
		}
	}
	return nil
}
