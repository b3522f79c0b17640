// Package embedder turns text into fixed-length vectors via a local
// embedding backend.
//
// The backend is an HTTP sidecar on loopback that loads sentence-transformer
// models on demand. Each speed tier binds one model:
//
//	fast      BAAI/bge-small-en-v1.5              384 dims
//	balanced  BAAI/bge-base-en-v1.5               768 dims
//	quality   jinaai/jina-embeddings-v2-base-code 768 dims
//	hybrid    balanced + quality concatenated     1536 dims
//
// Providers load lazily: the first embed call health-checks the backend and
// fails with a model-load error if it is not up. Concurrent callers queue
// behind a mutex rather than racing a loading model. A shared LRU cache
// keyed by model and content hash skips repeat encodings of unchanged
// chunks.
//
// Usage:
//
//	reg := embedder.NewRegistry(embedder.DefaultBaseURL, 0)
//	emb, err := reg.Get(types.ModeBalanced)
//	vecs, err := emb.EmbedBatch(ctx, texts)
package embedder
