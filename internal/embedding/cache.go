package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"hindsight/internal/logging"
)

// =============================================================================
// CACHED ENGINE
// =============================================================================

// CachedEngine wraps an engine with an LRU text -> vector cache and a
// dimension guard. Every vector leaving this wrapper is L2-normalized and
// exactly dims wide: engines returning wider vectors are truncated
// (Matryoshka-style) then renormalized, narrower vectors are an error.
//
// Ingestion re-reads unchanged transcripts across runs and the rule stages
// re-embed the same rule texts, so the cache saves real round-trips.
type CachedEngine struct {
	inner EmbeddingEngine
	cache *lru.Cache[string, []float32]
	dims  int
}

// NewCachedEngine wraps inner with a cache of the given size.
func NewCachedEngine(inner EmbeddingEngine, dims, size int) (*CachedEngine, error) {
	if dims <= 0 {
		dims = 384
	}
	if size <= 0 {
		size = 8192
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEngine{inner: inner, cache: cache, dims: dims}, nil
}

// Embed returns a normalized dims-wide vector for text, from cache when
// possible.
func (e *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	raw, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, &EmbedError{Engine: e.inner.Name(), Op: "embed", Err: err}
	}

	vec, err := e.guard(raw)
	if err != nil {
		return nil, err
	}

	e.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts, batching only the cache misses through the inner
// engine.
func (e *CachedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := e.cache.Get(cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}
	logging.EmbeddingDebug("EmbedBatch: %d/%d cache hits, embedding %d texts",
		len(texts)-len(missTexts), len(texts), len(missTexts))

	raw, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, &EmbedError{Engine: e.inner.Name(), Op: "embed_batch", Err: err}
	}
	if len(raw) != len(missTexts) {
		return nil, &EmbedError{
			Engine: e.inner.Name(),
			Op:     "embed_batch",
			Reason: fmt.Sprintf("asked for %d vectors, got %d", len(missTexts), len(raw)),
		}
	}

	for j, rawVec := range raw {
		vec, err := e.guard(rawVec)
		if err != nil {
			return nil, err
		}
		e.cache.Add(cacheKey(missTexts[j]), vec)
		results[missIdx[j]] = vec
	}

	return results, nil
}

// Dimensions returns the guarded output width.
func (e *CachedEngine) Dimensions() int {
	return e.dims
}

// Name returns the inner engine name.
func (e *CachedEngine) Name() string {
	return e.inner.Name()
}

// HealthCheck delegates to the inner engine when it supports checks.
func (e *CachedEngine) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// guard truncates, validates and L2-normalizes a raw engine vector.
func (e *CachedEngine) guard(raw []float32) ([]float32, error) {
	if len(raw) < e.dims {
		return nil, &EmbedError{
			Engine: e.inner.Name(),
			Op:     "embed",
			Reason: fmt.Sprintf("got %d dimensions, need %d", len(raw), e.dims),
		}
	}

	vec := make([]float32, e.dims)
	copy(vec, raw[:e.dims])

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil, &EmbedError{Engine: e.inner.Name(), Op: "embed", Reason: "zero-magnitude vector"}
	}

	inv := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
