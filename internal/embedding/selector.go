package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/rag-qa-server/internal/config"
)

// BackendKind is the retrieval mode chosen at startup.
type BackendKind string

const (
	KindLocalEmbedding  BackendKind = "local-embedding"
	KindRemoteEmbedding BackendKind = "remote-embedding"
	KindLexical         BackendKind = "lexical"
)

// IsEmbedding reports whether the backend searches by dense vectors.
func (k BackendKind) IsEmbedding() bool {
	return k == KindLocalEmbedding || k == KindRemoteEmbedding
}

// Backend is the committed outcome of selection. Embedder is nil for the
// lexical backend.
type Backend struct {
	Kind       BackendKind
	Embedder   Embedder
	Model      string
	Dimensions int
}

// Attempt records one candidate tried by the selector.
type Attempt struct {
	Name string
	Kind BackendKind
	Err  error
}

// LocalFactory builds and checks an embedder for a local model.
type LocalFactory func(ctx context.Context, host string, model config.LocalModel) (Embedder, error)

// RemoteFactory builds and checks an embedder for the remote mirror.
type RemoteFactory func(ctx context.Context, mirror config.MirrorConfig) (Embedder, error)

// Selector picks the first working backend from an ordered list: the
// primary local model, alternative local models, the remote mirror and
// finally lexical search.
type Selector struct {
	cfg       config.EmbeddingConfig
	newLocal  LocalFactory
	newRemote RemoteFactory
	logger    *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLocalFactory replaces the langchaingo-backed local embedder constructor.
func WithLocalFactory(f LocalFactory) SelectorOption {
	return func(s *Selector) { s.newLocal = f }
}

// WithRemoteFactory replaces the openai-go-backed mirror constructor.
func WithRemoteFactory(f RemoteFactory) SelectorOption {
	return func(s *Selector) { s.newRemote = f }
}

// NewSelector creates a Selector for cfg.
func NewSelector(cfg config.EmbeddingConfig, logger *slog.Logger, opts ...SelectorOption) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Selector{
		cfg:    cfg,
		logger: logger.With("component", "backend-selector"),
	}
	s.newLocal = func(ctx context.Context, host string, model config.LocalModel) (Embedder, error) {
		return NewLocalEmbedder(ctx, host, model, s.logger)
	}
	s.newRemote = func(ctx context.Context, mirror config.MirrorConfig) (Embedder, error) {
		return NewRemoteEmbedder(ctx, mirror)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	name string
	kind BackendKind
	try  func(ctx context.Context) (Embedder, error)
}

// Select tries each candidate in order and commits to the first success.
// It returns every attempt made, for reporting. When nothing works the
// error wraps ErrNoBackendAvailable and joins the individual failures.
func (s *Selector) Select(ctx context.Context) (*Backend, []Attempt, error) {
	var attempts []Attempt
	var errs []error

	for _, c := range s.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		s.logger.Info("Trying retrieval backend", "candidate", c.name, "kind", c.kind)
		embedder, err := c.try(ctx)
		attempts = append(attempts, Attempt{Name: c.name, Kind: c.kind, Err: err})
		if err != nil {
			s.logger.Warn("Retrieval backend unavailable", "candidate", c.name, "kind", c.kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}

		backend := &Backend{Kind: c.kind, Model: c.name}
		if embedder != nil {
			backend.Embedder = NewCachedEmbedder(embedder, s.cfg.QueryCacheSize)
			backend.Model = embedder.ModelName()
			backend.Dimensions = embedder.Dimensions()
		}
		s.logger.Info("Selected retrieval backend",
			"kind", backend.Kind,
			"model", backend.Model,
			"dimensions", backend.Dimensions,
		)
		return backend, attempts, nil
	}

	s.logger.Error("No retrieval backend available", "attempts", len(attempts))
	return nil, attempts, fmt.Errorf("%w: %w", ErrNoBackendAvailable, errors.Join(errs...))
}

func (s *Selector) candidates() []candidate {
	var out []candidate

	if !s.cfg.LexicalOnly {
		locals := append([]config.LocalModel{s.cfg.Primary}, s.cfg.Alternatives...)
		for _, model := range locals {
			if model.Name == "" {
				continue
			}
			out = append(out, candidate{
				name: model.Name,
				kind: KindLocalEmbedding,
				try: func(ctx context.Context) (Embedder, error) {
					return checkDimensions(s.newLocal(ctx, s.cfg.LocalHost, model))
				},
			})
		}

		if s.cfg.Mirror.BaseURL != "" {
			mirror := s.cfg.Mirror
			out = append(out, candidate{
				name: mirror.Model,
				kind: KindRemoteEmbedding,
				try: func(ctx context.Context) (Embedder, error) {
					return checkDimensions(s.newRemote(ctx, mirror))
				},
			})
		}
	}

	out = append(out, candidate{
		name: "tf-idf",
		kind: KindLexical,
		try: func(context.Context) (Embedder, error) {
			if s.cfg.DisableLexicalFallback {
				return nil, errors.New("lexical fallback disabled")
			}
			return nil, nil
		},
	})
	return out
}

func checkDimensions(e Embedder, err error) (Embedder, error) {
	if err != nil {
		return nil, err
	}
	if e.Dimensions() <= 0 {
		return nil, ErrEmptyEmbedding
	}
	return e, nil
}
