package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/bull/rag-qa-server/internal/config"
)

// LocalEmbedder serves a model from a local OpenAI-compatible inference
// host (Ollama, llama.cpp server, text-embeddings-inference).
type LocalEmbedder struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	logger     *slog.Logger
}

// NewLocalEmbedder checks the model's on-disk path when one is configured,
// connects to host and embeds a sample once to learn its dimensions.
func NewLocalEmbedder(ctx context.Context, host string, model config.LocalModel, logger *slog.Logger) (*LocalEmbedder, error) {
	if model.Name == "" {
		return nil, fmt.Errorf("local model name is empty")
	}
	if model.Path != "" {
		if _, err := os.Stat(model.Path); err != nil {
			return nil, fmt.Errorf("model path %s: %w", model.Path, err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Local hosts do not authenticate; langchaingo still requires a token.
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(DefaultBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	e := &LocalEmbedder{
		embedder: embedder,
		model:    model.Name,
		logger:   logger.With("component", "local-embedder", "model", model.Name),
	}

	sample, err := e.EmbedText(ctx, sampleText)
	if err != nil {
		return nil, fmt.Errorf("embed sample for %s: %w", model.Name, err)
	}
	e.dimensions = len(sample)
	return e, nil
}

// EmbedTexts generates vector embeddings for multiple texts in one call.
func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("Generating embeddings", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedText generates the vector embedding for a single query.
func (e *LocalEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vector, nil
}

// ModelName returns the local model name.
func (e *LocalEmbedder) ModelName() string { return e.model }

// Dimensions returns the vector size learned from the sample embedding.
func (e *LocalEmbedder) Dimensions() int { return e.dimensions }
