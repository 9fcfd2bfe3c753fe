// Package rag ties the retrieval components together: it loads and indexes
// documents, searches the committed backend and synthesizes answers.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bull/rag-qa-server/internal/answer"
	"github.com/bull/rag-qa-server/internal/chunker"
	"github.com/bull/rag-qa-server/internal/config"
	"github.com/bull/rag-qa-server/internal/embedding"
	"github.com/bull/rag-qa-server/internal/github"
	"github.com/bull/rag-qa-server/internal/ingest"
	"github.com/bull/rag-qa-server/internal/lexical"
	"github.com/bull/rag-qa-server/internal/storage"
)

var (
	// ErrNotReady is returned by Search while the index is empty or its
	// collection is missing, e.g. during a forced reload.
	ErrNotReady = errors.New("index not ready")

	// ErrNoChunks is returned when a load produced no chunk long enough to index.
	ErrNoChunks = errors.New("no valid chunks to index")
)

// VectorIndex is the dense-vector store used by embedding backends.
type VectorIndex interface {
	Add(ctx context.Context, entries []storage.Entry) error
	Recreate(ctx context.Context) error
	Query(ctx context.Context, vector []float32, k int) ([]storage.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) error
	Name() string
	Dimensions() int
	Close() error
}

// LexicalIndex is the term-based index used by the lexical backend.
type LexicalIndex interface {
	Fit(texts []string, metas []storage.ChunkMetadata) error
	Query(text string, k int) []storage.SearchResult
	Len() int
}

// Generator produces an answer from a question and retrieved context. It
// never fails; degraded answers are its own concern.
type Generator interface {
	Generate(ctx context.Context, question, retrieved string) string
}

// Loader turns a source string into parsed documents.
type Loader interface {
	Load(ctx context.Context, source string, maxDocuments int) (*ingest.ParseResult, error)
}

// Components are the collaborators of a System. Vector is required for
// embedding backends and Lexical for the lexical backend.
type Components struct {
	Backend *embedding.Backend
	Vector  VectorIndex
	Lexical LexicalIndex
	Answer  Generator
	Loader  Loader
	Chunker *chunker.Chunker
}

// InitError reports which initialization stage failed.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// System is the question-answering pipeline for one committed backend.
// Loading, recreating and fitting take the write lock; searches share the
// read lock.
type System struct {
	cfg     *config.Config
	backend *embedding.Backend
	vector  VectorIndex
	lexical LexicalIndex
	answer  Generator
	loader  Loader
	chunker *chunker.Chunker
	logger  *slog.Logger

	mu sync.RWMutex
}

// New assembles a System from already constructed components.
func New(cfg *config.Config, c Components, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Backend == nil {
		return nil, &InitError{Stage: "backend", Err: errors.New("no backend committed")}
	}
	if c.Backend.Kind.IsEmbedding() && (c.Vector == nil || c.Backend.Embedder == nil) {
		return nil, &InitError{Stage: "vector-index", Err: errors.New("embedding backend requires a vector index and embedder")}
	}
	if !c.Backend.Kind.IsEmbedding() && c.Lexical == nil {
		return nil, &InitError{Stage: "lexical-index", Err: errors.New("lexical backend requires a lexical index")}
	}
	if c.Answer == nil {
		c.Answer = answer.NewSynthesizer(nil, logger)
	}
	if c.Chunker == nil {
		c.Chunker = chunker.New(
			chunker.WithMaxSize(cfg.Chunking.MaxChunkSize),
			chunker.WithOverlap(cfg.Chunking.ChunkOverlap),
		)
	}
	if c.Loader == nil {
		c.Loader = ingest.NewLoader(nil, logger)
	}

	return &System{
		cfg:     cfg,
		backend: c.Backend,
		vector:  c.Vector,
		lexical: c.Lexical,
		answer:  c.Answer,
		loader:  c.Loader,
		chunker: c.Chunker,
		logger:  logger.With("component", "rag"),
	}, nil
}

// Open selects a backend and wires the production components for it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, _, err := embedding.NewSelector(cfg.Embedding, logger).Select(ctx)
	if err != nil {
		return nil, &InitError{Stage: "backend-selection", Err: err}
	}

	c := Components{
		Backend: backend,
		Loader:  ingest.NewLoader(githubFetcher(cfg.Data.GitHubToken), logger),
	}

	if backend.Kind.IsEmbedding() {
		idx, err := storage.OpenQdrant(ctx, cfg.Qdrant, backend.Dimensions, logger)
		if err != nil {
			return nil, &InitError{Stage: "vector-index", Err: err}
		}
		c.Vector = idx
	} else {
		c.Lexical = lexical.New(cfg.Lexical.MaxFeatures)
	}

	var chat answer.ChatClient
	if cfg.ChatEnabled() {
		chat = answer.NewOpenAIChat(cfg.Chat)
	} else {
		logger.Warn("Chat API key not set, answers fall back to context excerpts")
	}
	c.Answer = answer.NewSynthesizer(chat, logger)

	return New(cfg, c, logger)
}

func githubFetcher(token string) ingest.FetcherFactory {
	return func(_ context.Context, owner, repo, ref string) (ingest.RemoteFetcher, error) {
		client, err := github.NewClient(token)
		if err != nil {
			return nil, err
		}
		return github.NewFetcher(client, owner, repo, ref), nil
	}
}

// Backend returns the committed backend.
func (s *System) Backend() *embedding.Backend {
	return s.backend
}

// Stats describes the current index.
type Stats struct {
	TotalDocuments int                   `json:"total_documents"`
	Backend        embedding.BackendKind `json:"backend"`
	Model          string                `json:"model"`
	Dimensions     int                   `json:"dimensions"`
	ChunkSize      int                   `json:"chunk_size"`
	ChunkOverlap   int                   `json:"chunk_overlap"`
	CollectionName string                `json:"collection_name"`
}

// Stats reports index size and configuration. TotalDocuments counts
// indexed chunks.
func (s *System) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Backend:        s.backend.Kind,
		Model:          s.backend.Model,
		Dimensions:     s.backend.Dimensions,
		ChunkSize:      s.chunker.MaxSize(),
		ChunkOverlap:   s.chunker.Overlap(),
		CollectionName: s.cfg.Qdrant.Collection,
	}

	count, err := s.indexedCount(ctx)
	if err != nil {
		s.logger.Warn("Failed to count indexed chunks", "error", err)
	}
	stats.TotalDocuments = count
	return stats
}

// Health checks the index backing the system.
func (s *System) Health(ctx context.Context) error {
	if s.vector == nil {
		return nil
	}
	return s.vector.Health(ctx)
}

// Close releases the vector index connection.
func (s *System) Close() error {
	if s.vector == nil {
		return nil
	}
	return s.vector.Close()
}

// indexedCount returns the number of indexed chunks. A missing collection
// counts as empty. Callers hold s.mu.
func (s *System) indexedCount(ctx context.Context) (int, error) {
	if !s.backend.Kind.IsEmbedding() {
		return s.lexical.Len(), nil
	}
	n, err := s.vector.Count(ctx)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return 0, nil
	}
	return n, err
}
