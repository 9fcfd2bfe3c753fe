package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bull/rag-qa-server/internal/config"
	"github.com/bull/rag-qa-server/internal/embedding"
	"github.com/bull/rag-qa-server/internal/storage"
)

// Stage is a step of query processing.
type Stage string

const (
	StageReceived         Stage = "received"
	StageSearching        Stage = "searching"
	StageContextAssembled Stage = "context_assembled"
	StageGenerating       Stage = "generating"
	StageCompleted        Stage = "completed"
)

// maxContextResults caps the results folded into the context, whatever
// top_k was searched with.
const maxContextResults = config.MaxContextResults

// QueryResponse is the answer to one question together with its sources
// and per-stage timings. TotalTime is measured end to end.
type QueryResponse struct {
	Answer       string                 `json:"answer"`
	Sources      []storage.SearchResult `json:"sources"`
	SearchTime   time.Duration          `json:"search_time"`
	GenerateTime time.Duration          `json:"generate_time"`
	TotalTime    time.Duration          `json:"total_time"`
	Backend      embedding.BackendKind  `json:"backend"`
}

// Search returns up to topK results for query from the committed backend.
// topK <= 0 uses the configured default.
func (s *System) Search(ctx context.Context, query string, topK int) ([]storage.SearchResult, error) {
	if topK <= 0 {
		topK = s.cfg.Search.DefaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.backend.Kind.IsEmbedding() {
		if s.lexical.Len() == 0 {
			return nil, fmt.Errorf("%w: lexical index is empty", ErrNotReady)
		}
		return s.lexical.Query(query, topK), nil
	}

	vector, err := s.backend.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.vector.Query(ctx, vector, topK)
	if err != nil {
		if errors.Is(err, storage.ErrCollectionNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return nil, err
	}
	return results, nil
}

// Query runs search, context assembly and answer generation. It never
// fails: search errors are logged and the answer is generated from an
// empty context.
func (s *System) Query(ctx context.Context, question string, topK int) *QueryResponse {
	start := time.Now()
	s.stage(StageReceived, "question", question, "top_k", topK)

	s.stage(StageSearching)
	searchStart := time.Now()
	sources, err := s.Search(ctx, question, topK)
	if err != nil {
		s.logger.Warn("Search failed, answering without sources", "error", err)
		sources = []storage.SearchResult{}
	}
	searchTime := time.Since(searchStart)

	retrieved := AssembleContext(sources, s.cfg.Search.ContextResults)
	s.stage(StageContextAssembled, "sources", len(sources), "context_length", len([]rune(retrieved)))

	s.stage(StageGenerating)
	generateStart := time.Now()
	answer := s.answer.Generate(ctx, question, retrieved)
	generateTime := time.Since(generateStart)

	resp := &QueryResponse{
		Answer:       answer,
		Sources:      sources,
		SearchTime:   searchTime,
		GenerateTime: generateTime,
		TotalTime:    time.Since(start),
		Backend:      s.backend.Kind,
	}
	s.stage(StageCompleted,
		"search_time", resp.SearchTime,
		"generate_time", resp.GenerateTime,
		"total_time", resp.TotalTime,
	)
	return resp
}

func (s *System) stage(stage Stage, args ...any) {
	s.logger.Debug("Query stage", append([]any{"stage", stage}, args...)...)
}

// AssembleContext joins the first n results into one context string, each
// labelled with its 1-based position. n is capped at 3; n <= 0 means 3.
func AssembleContext(results []storage.SearchResult, n int) string {
	if n <= 0 || n > maxContextResults {
		n = maxContextResults
	}
	if len(results) > n {
		results = results[:n]
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Source %d: %s", i+1, r.Content)
	}
	return strings.Join(parts, "\n\n")
}
