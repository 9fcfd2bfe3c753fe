// Package embedding provides text embedders and the backend selector that
// decides at startup which retrieval mode the system runs in.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding call while indexing.
	DefaultBatchSize = 32

	// progressEvery controls how often batch progress is logged.
	progressEvery = 10

	// sampleText is embedded once per candidate model to verify it and learn its dimensions.
	sampleText = "embedding check"
)

var (
	// ErrNoBackendAvailable is returned when every backend attempt failed.
	ErrNoBackendAvailable = errors.New("no retrieval backend available")

	// ErrEmptyEmbedding is returned when a model answers without a vector.
	ErrEmptyEmbedding = errors.New("embedding service returned no vector")
)

// Embedder turns text into dense vectors. Implementations must be safe for
// concurrent use.
type Embedder interface {
	// EmbedTexts embeds documents, one vector per input, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedText embeds a single query.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	Dimensions() int
}

// EmbedBatches embeds texts sequentially in fixed-size batches.
// If batchSize is 0, DefaultBatchSize (32) is used.
func EmbedBatches(ctx context.Context, e Embedder, texts []string, batchSize int, logger *slog.Logger) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	totalBatches := (len(texts) + batchSize - 1) / batchSize
	vectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batch := texts[i:end]

		embedded, err := e.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("batch %d-%d: got %d vectors for %d texts", i, end, len(embedded), len(batch))
		}
		vectors = append(vectors, embedded...)

		batchNum := i/batchSize + 1
		if batchNum%progressEvery == 0 || batchNum == totalBatches {
			logger.Info("Embedding progress", "batch", batchNum, "total_batches", totalBatches, "texts", len(vectors))
		}
	}

	return vectors, nil
}

// toFloat32 converts []float64 to []float32.
// OpenAI-compatible APIs return float64, the vector store takes float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
