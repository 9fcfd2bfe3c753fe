package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPointID(t *testing.T) {
	a := PointID("news", "news_0_chunk_0")
	b := PointID("news", "news_0_chunk_0")

	assert.Equal(t, a, b, "point ids are deterministic")
	_, err := uuid.Parse(a)
	require.NoError(t, err)

	assert.NotEqual(t, a, PointID("news", "news_0_chunk_1"))
	assert.NotEqual(t, a, PointID("novels", "news_0_chunk_0"), "collections do not share ids")
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-0.3))
	assert.Equal(t, 1.0, clampScore(1.0000001))
	assert.InDelta(t, 0.5, clampScore(0.5), 1e-6)
}

func TestResultsFromPoints(t *testing.T) {
	point := func(score float32, chunkID string) *qdrant.ScoredPoint {
		return &qdrant.ScoredPoint{
			Score: score,
			Payload: qdrant.NewValueMap(payload(Entry{
				Text: "content of " + chunkID,
				Metadata: ChunkMetadata{
					Title:    "标题",
					Category: "科技",
					DocID:    "news_0",
					ChunkID:  chunkID,
				},
			})),
		}
	}

	results := resultsFromPoints([]*qdrant.ScoredPoint{
		point(0.42, "b"),
		point(1.2, "a"),
		point(-0.1, "c"),
	})

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Metadata.ChunkID)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "b", results[1].Metadata.ChunkID)
	assert.Equal(t, 0.0, results[2].Score)

	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}

	assert.Equal(t, "content of a", results[0].Content)
	assert.Equal(t, "标题", results[0].Metadata.Title)
	assert.Equal(t, "news_0", results[0].Metadata.DocID)
}

func TestIsNotFound(t *testing.T) {
	notFound := status.Error(codes.NotFound, "Collection `news` doesn't exist!")

	assert.True(t, isNotFound(notFound))
	assert.True(t, isNotFound(fmt.Errorf("query: %w", notFound)))
	assert.False(t, isNotFound(status.Error(codes.Unavailable, "down")))
	assert.False(t, isNotFound(errors.New("plain")))
	assert.False(t, isNotFound(nil))
}
