package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bull/rag-qa-server/internal/chunker"
	"github.com/bull/rag-qa-server/internal/embedding"
	"github.com/bull/rag-qa-server/internal/ingest"
	"github.com/bull/rag-qa-server/internal/storage"
)

// LoadResult contains statistics about a load operation.
type LoadResult struct {
	AlreadyIndexed bool          `json:"already_indexed"` // Existing index kept, nothing loaded
	Documents      int           `json:"documents"`
	SkippedUnits   int           `json:"skipped_units"`
	Chunks         int           `json:"chunks"`
	DroppedChunks  int           `json:"dropped_chunks"`
	IndexedTotal   int           `json:"indexed_total"`
	Duration       time.Duration `json:"duration"`
}

// chunk is one indexable piece of a document.
type chunk struct {
	text     string
	metadata storage.ChunkMetadata
}

// LoadAndIndex parses source and indexes its chunks with the committed
// backend. Unless forceReload is set, a non-empty index is kept and nothing
// is loaded. An empty source uses the configured one and maxDocuments <= 0
// uses the configured cap.
func (s *System) LoadAndIndex(ctx context.Context, source string, maxDocuments int, forceReload bool) (*LoadResult, error) {
	start := time.Now()
	if source == "" {
		source = s.cfg.Data.Source
	}
	if maxDocuments <= 0 {
		maxDocuments = s.cfg.Data.MaxDocuments
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !forceReload {
		count, err := s.indexedCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("count indexed chunks: %w", err)
		}
		if count > 0 {
			s.logger.Info("Index already populated, skipping load", "chunks", count)
			return &LoadResult{AlreadyIndexed: true, IndexedTotal: count, Duration: time.Since(start)}, nil
		}
	}

	s.logger.Info("Loading source", "source", source, "max_documents", maxDocuments, "force", forceReload)
	parsed, err := s.loader.Load(ctx, source, maxDocuments)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	result := &LoadResult{
		Documents:    parsed.Parsed,
		SkippedUnits: parsed.Skipped,
	}

	chunks, dropped := buildChunks(parsed.Documents, s.chunker, s.cfg.Chunking.MinChunkLength)
	result.DroppedChunks = dropped
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %d documents from %s", ErrNoChunks, parsed.Parsed, source)
	}
	result.Chunks = len(chunks)
	s.logger.Info("Chunked documents", "documents", parsed.Parsed, "chunks", len(chunks), "dropped", dropped)

	if s.backend.Kind.IsEmbedding() {
		err = s.indexVectors(ctx, chunks, forceReload)
	} else {
		err = s.fitLexical(chunks)
	}
	if err != nil {
		return nil, err
	}

	result.IndexedTotal, err = s.indexedCount(ctx)
	if err != nil {
		s.logger.Warn("Failed to count indexed chunks", "error", err)
	}
	result.Duration = time.Since(start)
	s.logger.Info("Indexing complete",
		"backend", s.backend.Kind,
		"chunks", result.Chunks,
		"indexed_total", result.IndexedTotal,
		"duration", result.Duration,
	)
	return result, nil
}

// indexVectors embeds chunks in sequential batches and stores them. A forced
// reload recreates the collection first so only the latest chunks remain.
func (s *System) indexVectors(ctx context.Context, chunks []chunk, forceReload bool) error {
	if forceReload {
		if err := s.vector.Recreate(ctx); err != nil {
			return fmt.Errorf("recreate collection: %w", err)
		}
		s.logger.Info("Recreated collection", "collection", s.vector.Name())
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}

	vectors, err := embedding.EmbedBatches(ctx, s.backend.Embedder, texts, s.cfg.Embedding.BatchSize, s.logger)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]storage.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = storage.Entry{
			Text:     c.text,
			Vector:   vectors[i],
			Metadata: c.metadata,
		}
	}

	if err := s.vector.Add(ctx, entries); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

func (s *System) fitLexical(chunks []chunk) error {
	texts := make([]string, len(chunks))
	metas := make([]storage.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
		metas[i] = c.metadata
	}
	if err := s.lexical.Fit(texts, metas); err != nil {
		return fmt.Errorf("fit lexical index: %w", err)
	}
	return nil
}

// buildChunks cleans and splits documents. Chunks shorter than minLength
// characters are dropped and counted. Chunk ids are "<docID>_chunk_<n>"
// where n is the chunk's position in its document's split.
func buildChunks(docs []ingest.Document, c *chunker.Chunker, minLength int) ([]chunk, int) {
	var chunks []chunk
	dropped := 0

	for _, doc := range docs {
		content := ingest.CleanText(doc.Content)
		if content == "" {
			continue
		}
		title := strings.TrimSpace(doc.Title)

		for ordinal, piece := range c.Split(content) {
			if chunker.Len(strings.TrimSpace(piece)) < minLength {
				dropped++
				continue
			}
			chunkID := fmt.Sprintf("%s_chunk_%d", doc.ID, ordinal)
			chunks = append(chunks, chunk{
				text: piece,
				metadata: storage.ChunkMetadata{
					Title:    title,
					Category: doc.Category,
					Keywords: doc.Keywords,
					DocID:    doc.ID,
					ChunkID:  chunkID,
				},
			})
		}
	}
	return chunks, dropped
}
