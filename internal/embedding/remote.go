package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/rag-qa-server/internal/config"
)

// RemoteEmbedder calls a remote OpenAI-compatible embedding service (the
// mirror). Batches are retried with exponential backoff on rate limit errors.
type RemoteEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewRemoteEmbedder builds a client for the mirror and embeds a sample once to
// learn the model's dimensions.
func NewRemoteEmbedder(ctx context.Context, cfg config.MirrorConfig) (*RemoteEmbedder, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.New("mirror base URL and model must be set")
	}

	// Retries are owned by embedBatchWithRetry.
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client := openai.NewClient(opts...)

	e := &RemoteEmbedder{client: &client, model: cfg.Model}
	sample, err := e.EmbedText(ctx, sampleText)
	if err != nil {
		return nil, fmt.Errorf("embed sample for %s: %w", cfg.Model, err)
	}
	e.dimensions = len(sample)
	return e, nil
}

// EmbedTexts embeds one batch. Callers split large inputs with EmbedBatches.
func (e *RemoteEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embedBatchWithRetry(ctx, texts)
}

// EmbedText embeds a single query.
func (e *RemoteEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatchWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vectors[0], nil
}

// ModelName returns the mirror's model identifier.
func (e *RemoteEmbedder) ModelName() string { return e.model }

// Dimensions returns the vector size learned from the sample embedding.
func (e *RemoteEmbedder) Dimensions() int { return e.dimensions }

// embedBatchWithRetry retries on HTTP 429 only; other errors fail immediately.
func (e *RemoteEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
