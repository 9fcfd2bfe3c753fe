// Package mcp exposes the question-answering system as MCP tools.
package mcp

// SearchInput defines the input parameters for the search tool.
type SearchInput struct {
	// Query is the text to retrieve chunks for.
	Query string `json:"query" jsonschema:"the search query"`
	// TopK is the maximum number of chunks to return.
	TopK int `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
}

// SearchOutput contains the search results.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	// Message explains an empty result (e.g. the index is not loaded yet).
	Message string `json:"message,omitempty"`
}

// SearchResult is a single retrieved chunk.
type SearchResult struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score" jsonschema:"relevance score between 0 and 1"`
	Title    string  `json:"title,omitempty"`
	Category string  `json:"category,omitempty"`
	Keywords string  `json:"keywords,omitempty"`
	DocID    string  `json:"doc_id"`
	ChunkID  string  `json:"chunk_id"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve, default 5"`
}

// AskOutput contains the generated answer, its sources and stage timings.
type AskOutput struct {
	Answer         string         `json:"answer"`
	Sources        []SearchResult `json:"sources"`
	SearchTimeMs   float64        `json:"search_time_ms"`
	GenerateTimeMs float64        `json:"generate_time_ms"`
	TotalTimeMs    float64        `json:"total_time_ms"`
	Backend        string         `json:"backend"`
}

// StatsInput takes no parameters.
type StatsInput struct{}

// StatsOutput describes the current index and its configuration.
type StatsOutput struct {
	TotalDocuments int    `json:"total_documents" jsonschema:"number of indexed chunks"`
	Backend        string `json:"backend"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	CollectionName string `json:"collection_name"`
}

// LoadDataInput defines the input parameters for the load_data tool.
type LoadDataInput struct {
	Source       string `json:"source,omitempty" jsonschema:"local path or github://owner/repo/path[@ref], defaults to the configured source"`
	MaxDocuments int    `json:"max_documents,omitempty" jsonschema:"cap on parsed documents, default 1000"`
	ForceReload  bool   `json:"force_reload,omitempty" jsonschema:"rebuild the index even when it is already populated"`
}

// LoadDataOutput reports what a load did.
type LoadDataOutput struct {
	AlreadyIndexed bool    `json:"already_indexed"`
	Documents      int     `json:"documents"`
	SkippedUnits   int     `json:"skipped_units"`
	Chunks         int     `json:"chunks"`
	DroppedChunks  int     `json:"dropped_chunks"`
	IndexedTotal   int     `json:"indexed_total"`
	DurationMs     float64 `json:"duration_ms"`
	Message        string  `json:"message"`
}
