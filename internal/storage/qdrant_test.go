//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-qa-server/internal/config"
)

const testDims = 8

// setupTestIndex opens a fresh collection and drops it when the test ends.
// Skips test if Qdrant is not running.
func setupTestIndex(t *testing.T, dims int) *QdrantIndex {
	t.Helper()

	cfg := config.Default().Qdrant
	cfg.Collection = "test_" + uuid.NewString()[:8]

	idx, err := OpenQdrant(context.Background(), cfg, dims, nil)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	t.Cleanup(func() {
		_ = idx.client.DeleteCollection(context.Background(), idx.Name())
		_ = idx.Close()
	})
	return idx
}

// unitVector returns a vector with a 1 at position hot.
func unitVector(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func entry(docID string, ordinal int, vector []float32) Entry {
	chunkID := fmt.Sprintf("%s_chunk_%d", docID, ordinal)
	return Entry{
		Text:   "text of " + chunkID,
		Vector: vector,
		Metadata: ChunkMetadata{
			Title:    "title " + docID,
			Category: "科技",
			DocID:    docID,
			ChunkID:  chunkID,
		},
	}
}

func TestAddAndQuery(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Entry{
		entry("news_0", 0, unitVector(testDims, 0)),
		entry("news_1", 0, unitVector(testDims, 1)),
		entry("news_2", 0, []float32{0.7, 0.7, 0, 0, 0, 0, 0, 0}),
	}))

	results, err := idx.Query(ctx, unitVector(testDims, 0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "news_0_chunk_0", results[0].Metadata.ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Equal(t, "news_2_chunk_0", results[1].Metadata.ChunkID)
	assert.Equal(t, "text of news_0_chunk_0", results[0].Content)

	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestReopenKeepsPoints(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Entry{entry("news_0", 0, unitVector(testDims, 0))}))

	cfg := config.Default().Qdrant
	cfg.Collection = idx.Name()
	reopened, err := OpenQdrant(ctx, cfg, testDims, nil)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddIsIdempotentPerChunk(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	e := entry("news_0", 0, unitVector(testDims, 0))
	require.NoError(t, idx.Add(ctx, []Entry{e}))
	require.NoError(t, idx.Add(ctx, []Entry{e}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBatchAdd(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	entries := make([]Entry, 250)
	for i := range entries {
		entries[i] = entry("doc", i, unitVector(testDims, i))
	}
	require.NoError(t, idx.Add(ctx, entries))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, count)
}

func TestRecreate(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Entry{
		entry("news_0", 0, unitVector(testDims, 0)),
		entry("news_1", 0, unitVector(testDims, 1)),
	}))
	require.NoError(t, idx.Recreate(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	results, err := idx.Query(ctx, unitVector(testDims, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDimensionMismatch(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	err := idx.Add(ctx, []Entry{entry("news_0", 0, unitVector(4, 0))})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Query(ctx, unitVector(4, 0), 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAttachKeepsExistingDimensions(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	cfg := config.Default().Qdrant
	cfg.Collection = idx.Name()
	other, err := OpenQdrant(ctx, cfg, 16, nil)
	require.NoError(t, err)
	defer other.Close()

	assert.Equal(t, testDims, other.Dimensions())
	_, err = other.Query(ctx, unitVector(16, 0), 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMissingCollection(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	ctx := context.Background()

	require.NoError(t, idx.client.DeleteCollection(ctx, idx.Name()))

	_, err := idx.Query(ctx, unitVector(testDims, 0), 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = idx.Count(ctx)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestHealth(t *testing.T) {
	idx := setupTestIndex(t, testDims)
	assert.NoError(t, idx.Health(context.Background()))
}
