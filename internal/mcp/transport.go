package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the streamable HTTP transport.
type HTTPHandlerOptions struct {
	// Stateless disables session management.
	Stateless bool
	// JSONResponse answers with application/json instead of an SSE stream.
	JSONResponse bool
}

// NewHTTPHandler serves server over MCP Streamable HTTP. Mount it on a
// mux path such as "/mcp".
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{
		Stateless:    opts.Stateless,
		JSONResponse: opts.JSONResponse,
	})
}
