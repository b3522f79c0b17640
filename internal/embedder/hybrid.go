package embedder

import (
	"context"
	"fmt"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// HybridProvider fuses a general-language model and a code-specialized model
// by concatenating their vectors. The fused space has one fixed
// dimensionality, so hybrid vectors are comparable with each other and with
// nothing else.
type HybridProvider struct {
	general Embedder
	code    Embedder
}

// NewHybridProvider pairs the two tier providers. Both models load lazily on
// first use, same as any single-tier provider.
func NewHybridProvider(general, code Embedder) *HybridProvider {
	return &HybridProvider{general: general, code: code}
}

// Embed encodes document text under both models and concatenates the vectors,
// general half first.
func (p *HybridProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	gvec, err := p.general.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	cvec, err := p.code.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return concat(gvec, cvec), nil
}

// EmbedQuery encodes query text under both models.
func (p *HybridProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	gvec, err := p.general.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	cvec, err := p.code.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return concat(gvec, cvec), nil
}

// EmbedBatch encodes a batch under both models and fuses pairwise.
func (p *HybridProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	gvecs, err := p.general.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	cvecs, err := p.code.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(gvecs) != len(cvecs) {
		return nil, fmt.Errorf("%w: model batch sizes diverged: %d vs %d", types.ErrEmbedding, len(gvecs), len(cvecs))
	}
	fused := make([][]float32, len(texts))
	for i := range gvecs {
		fused[i] = concat(gvecs[i], cvecs[i])
	}
	return fused, nil
}

// Dimension returns the fused vector length.
func (p *HybridProvider) Dimension() int {
	return p.general.Dimension() + p.code.Dimension()
}

// ModelID identifies the fused model pair.
func (p *HybridProvider) ModelID() string {
	return p.general.ModelID() + "+" + p.code.ModelID()
}

// Close closes both underlying providers, returning the first error.
func (p *HybridProvider) Close() error {
	gerr := p.general.Close()
	cerr := p.code.Close()
	if gerr != nil {
		return gerr
	}
	return cerr
}

func concat(a, b []float32) []float32 {
	out := make([]float32, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
