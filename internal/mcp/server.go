package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-qa-server/internal/rag"
	"github.com/bull/rag-qa-server/internal/storage"
)

const (
	serverName    = "rag-qa-server"
	serverVersion = "v0.1.0"
)

// Service is the question-answering system behind the tools.
// *rag.System implements it.
type Service interface {
	Search(ctx context.Context, query string, topK int) ([]storage.SearchResult, error)
	Query(ctx context.Context, question string, topK int) *rag.QueryResponse
	Stats(ctx context.Context) rag.Stats
	LoadAndIndex(ctx context.Context, source string, maxDocuments int, forceReload bool) (*rag.LoadResult, error)
	Health(ctx context.Context) error
}

// Server wraps the MCP server with its service.
type Server struct {
	server *mcp.Server
	svc    Service
	logger *slog.Logger
}

// NewServer creates an MCP server with the search, ask, get_stats and
// load_data tools registered.
func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}
	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the document chunks most relevant to a query. Returns chunk text, relevance score and source metadata.",
	}, makeSearchHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents. Returns the answer, the chunks it was grounded on and per-stage timings.",
	}, makeAskHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Report the number of indexed chunks, the active retrieval backend and the chunking configuration.",
	}, makeStatsHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_data",
		Description: "Load documents from a local path or github:// source and index them. Skipped when the index is already populated unless force_reload is set.",
	}, makeLoadDataHandler(svc))

	return &Server{
		server: server,
		svc:    svc,
		logger: logger.With("component", "mcp"),
	}
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
