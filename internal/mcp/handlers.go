package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-qa-server/internal/rag"
	"github.com/bull/rag-qa-server/internal/storage"
)

const notReadyMessage = "The index is empty or being rebuilt. Call load_data first."

// makeSearchHandler creates the search tool handler. An index that is not
// ready yields an empty result with a message rather than a tool error.
func makeSearchHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		if input.Query == "" {
			return nil, SearchOutput{}, errors.New("query is required")
		}

		results, err := svc.Search(ctx, input.Query, input.TopK)
		if err != nil {
			if errors.Is(err, rag.ErrNotReady) {
				return nil, SearchOutput{Results: []SearchResult{}, Message: notReadyMessage}, nil
			}
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(results) == 0 {
			return nil, SearchOutput{
				Results: []SearchResult{},
				Message: "No matching chunks found. Try different search terms.",
			}, nil
		}
		return nil, SearchOutput{Results: toSearchResults(results)}, nil
	}
}

// makeAskHandler creates the ask tool handler. Query never fails, so
// neither does the tool once the question is present.
func makeAskHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		if input.Question == "" {
			return nil, AskOutput{}, errors.New("question is required")
		}

		resp := svc.Query(ctx, input.Question, input.TopK)
		return nil, AskOutput{
			Answer:         resp.Answer,
			Sources:        toSearchResults(resp.Sources),
			SearchTimeMs:   milliseconds(resp.SearchTime),
			GenerateTimeMs: milliseconds(resp.GenerateTime),
			TotalTimeMs:    milliseconds(resp.TotalTime),
			Backend:        string(resp.Backend),
		}, nil
	}
}

func makeStatsHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
		*mcp.CallToolResult, StatsOutput, error,
	) {
		stats := svc.Stats(ctx)
		return nil, StatsOutput{
			TotalDocuments: stats.TotalDocuments,
			Backend:        string(stats.Backend),
			Model:          stats.Model,
			Dimensions:     stats.Dimensions,
			ChunkSize:      stats.ChunkSize,
			ChunkOverlap:   stats.ChunkOverlap,
			CollectionName: stats.CollectionName,
		}, nil
	}
}

func makeLoadDataHandler(svc Service) func(
	context.Context, *mcp.CallToolRequest, LoadDataInput,
) (*mcp.CallToolResult, LoadDataOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LoadDataInput) (
		*mcp.CallToolResult, LoadDataOutput, error,
	) {
		result, err := svc.LoadAndIndex(ctx, input.Source, input.MaxDocuments, input.ForceReload)
		if err != nil {
			return nil, LoadDataOutput{}, fmt.Errorf("load failed: %w", err)
		}

		out := LoadDataOutput{
			AlreadyIndexed: result.AlreadyIndexed,
			Documents:      result.Documents,
			SkippedUnits:   result.SkippedUnits,
			Chunks:         result.Chunks,
			DroppedChunks:  result.DroppedChunks,
			IndexedTotal:   result.IndexedTotal,
			DurationMs:     milliseconds(result.Duration),
		}
		if result.AlreadyIndexed {
			out.Message = fmt.Sprintf("Index already holds %d chunks. Set force_reload to rebuild it.", result.IndexedTotal)
		} else {
			out.Message = fmt.Sprintf("Indexed %d chunks from %d documents.", result.Chunks, result.Documents)
		}
		return nil, out, nil
	}
}

func toSearchResults(results []storage.SearchResult) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			Content:  r.Content,
			Score:    r.Score,
			Title:    r.Metadata.Title,
			Category: r.Metadata.Category,
			Keywords: r.Metadata.Keywords,
			DocID:    r.Metadata.DocID,
			ChunkID:  r.Metadata.ChunkID,
		})
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
