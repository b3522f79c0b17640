package embedder

import (
	"fmt"
	"sync"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// Registry hands out one embedder per mode for the life of the process.
// Construction is lazy and happens at most once per mode; the mutex makes
// concurrent first callers queue behind a single construction instead of
// loading the same model twice. Hybrid shares the balanced and quality
// providers, so a process running balanced and hybrid searches loads each
// underlying model once.
type Registry struct {
	baseURL string
	cache   *Cache

	mu        sync.Mutex
	providers map[types.Mode]Embedder
}

// NewRegistry creates a registry whose providers talk to the backend at
// baseURL and share one vector cache.
func NewRegistry(baseURL string, cacheSize int) *Registry {
	return &Registry{
		baseURL:   baseURL,
		cache:     NewCache(cacheSize),
		providers: make(map[types.Mode]Embedder),
	}
}

// Get returns the embedder for mode, constructing it on first use.
func (r *Registry) Get(mode types.Mode) (Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(mode)
}

func (r *Registry) getLocked(mode types.Mode) (Embedder, error) {
	if e, ok := r.providers[mode]; ok {
		return e, nil
	}

	var e Embedder
	switch mode {
	case types.ModeFast:
		e = NewSidecarProvider(r.baseURL, FastModel, FastDimension, r.cache)
	case types.ModeBalanced:
		e = NewSidecarProvider(r.baseURL, BalancedModel, BalancedDimension, r.cache)
	case types.ModeQuality:
		e = NewSidecarProvider(r.baseURL, QualityModel, QualityDimension, r.cache)
	case types.ModeHybrid:
		general, err := r.getLocked(types.ModeBalanced)
		if err != nil {
			return nil, err
		}
		code, err := r.getLocked(types.ModeQuality)
		if err != nil {
			return nil, err
		}
		e = NewHybridProvider(general, code)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidMode, mode)
	}

	r.providers[mode] = e
	return e, nil
}

// CacheLen reports the shared cache occupancy, for status reporting.
func (r *Registry) CacheLen() int {
	return r.cache.Len()
}

// Close closes every constructed provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	// Close hybrid last so it does not double-close shared providers first.
	for mode, e := range r.providers {
		if mode == types.ModeHybrid {
			continue
		}
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.providers = make(map[types.Mode]Embedder)
	return first
}
