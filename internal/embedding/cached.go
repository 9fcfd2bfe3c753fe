package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueryCacheSize is the number of query vectors kept in memory.
const DefaultQueryCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache for query embeddings.
// Document batches pass straight through since they are embedded once per load.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a cache of cacheSize entries.
// If cacheSize is 0, DefaultQueryCacheSize is used.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultQueryCacheSize
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(hash[:])
}

// EmbedText returns the cached vector for text when present.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedTexts passes through to the inner embedder.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedTexts(ctx, texts)
}

// ModelName returns the model identifier (passthrough to inner).
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Len reports the number of cached queries.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
