package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// DefaultBaseURL is the local embedding backend address. The backend is a
// loopback-only sidecar; nothing here talks to a remote service.
const DefaultBaseURL = "http://127.0.0.1:11434"

const (
	healthPath = "/health"
	embedPath  = "/embeddings"

	requestTimeout = 120 * time.Second
	healthTimeout  = 5 * time.Second
)

type embedRequest struct {
	Texts   []string `json:"texts"`
	Model   string   `json:"model"`
	IsQuery bool     `json:"is_query"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SidecarProvider embeds text through the local HTTP backend, one model per
// provider. The first embed call checks backend readiness; load failures
// surface as types.ErrModelLoad and the next call retries, so a backend that
// comes up late recovers without restarting the process.
//
// Calls are serialized under a mutex. The backend loads each model once and
// is not safe for concurrent requests against a loading model, so concurrent
// callers queue.
type SidecarProvider struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	cache     *Cache

	mu    sync.Mutex
	ready bool
}

// NewSidecarProvider creates a provider for one model tier. The cache may be
// nil to disable caching (tests do this to count backend calls).
func NewSidecarProvider(baseURL, model string, dimension int, cache *Cache) *SidecarProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SidecarProvider{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: requestTimeout},
		cache:     cache,
	}
}

// Embed encodes document text.
func (p *SidecarProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.embedOne(ctx, text, false)
}

// EmbedQuery encodes query text with the backend's query task instruction.
func (p *SidecarProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.embedOne(ctx, text, true)
}

func (p *SidecarProvider) embedOne(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	role := "doc"
	if isQuery {
		role = "query"
	}
	key := cacheKey(p.model, role, text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(key); ok {
			return vec, nil
		}
	}

	vecs, err := p.request(ctx, []string{text}, isQuery)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.Set(key, vecs[0])
	}
	return vecs[0], nil
}

// EmbedBatch encodes texts in order, splitting into backend-sized requests.
// Cached texts are skipped; only misses hit the backend.
func (p *SidecarProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if p.cache != nil {
			if vec, ok := p.cache.Get(cacheKey(p.model, "doc", text)); ok {
				results[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vecs, err := p.request(ctx, missTexts[start:end], false)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			i := missIdx[start+j]
			results[i] = vec
			if p.cache != nil {
				p.cache.Set(cacheKey(p.model, "doc", texts[i]), vec)
			}
		}
	}
	return results, nil
}

// request serializes one backend round trip, checking readiness first.
func (p *SidecarProvider) request(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		if err := p.healthCheck(ctx); err != nil {
			return nil, err
		}
		p.ready = true
	}

	var vecs [][]float32
	err := retryWithBackoff(ctx, defaultRetryConfig(), func() error {
		var reqErr error
		vecs, reqErr = p.doEmbed(ctx, texts, isQuery)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

func (p *SidecarProvider) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrModelLoad, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: backend at %s not reachable: %v", types.ErrModelLoad, p.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: backend health returned status %d", types.ErrModelLoad, resp.StatusCode)
	}
	return nil
}

func (p *SidecarProvider) doEmbed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: p.model, IsQuery: isQuery})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", types.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+embedPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("%w: request failed: %v", types.ErrEmbedding, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", types.ErrEmbedding, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusServiceUnavailable:
		// Model still loading.
		return nil, &retryableError{fmt.Errorf("%w: model %s still loading", types.ErrModelLoad, p.model)}
	case resp.StatusCode >= 500:
		return nil, &retryableError{fmt.Errorf("%w: backend status %d: %s", types.ErrEmbedding, resp.StatusCode, errorMessage(data))}
	default:
		return nil, fmt.Errorf("%w: backend status %d: %s", types.ErrEmbedding, resp.StatusCode, errorMessage(data))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrEmbedding, err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", types.ErrEmbedding, len(texts), len(parsed.Embeddings))
	}
	for i, vec := range parsed.Embeddings {
		if len(vec) != p.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", types.ErrEmbedding, i, len(vec), p.dimension)
		}
	}
	return parsed.Embeddings, nil
}

func errorMessage(data []byte) string {
	var parsed errorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}

// Dimension returns the vector length produced by this provider's model.
func (p *SidecarProvider) Dimension() int { return p.dimension }

// ModelID returns the model identifier.
func (p *SidecarProvider) ModelID() string { return p.model }

// Close marks the provider unready; the HTTP client holds no persistent
// resources beyond idle connections.
func (p *SidecarProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = false
	p.client.CloseIdleConnections()
	return nil
}
