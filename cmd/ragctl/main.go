// Package main provides ragctl, the command line client for indexing and
// querying the question-answering system.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/rag-qa-server/internal/config"
	"github.com/bull/rag-qa-server/internal/embedding"
	"github.com/bull/rag-qa-server/internal/rag"
)

var (
	configPath  string
	source      string
	maxDocs     int
	forceReload bool
	topK        int
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Retrieval-augmented question answering tool",
	Long:          "CLI tool for loading documents into the retrieval index and asking questions against it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load a source and index its chunks",
	Long: `Parses the source, splits documents into overlapping chunks and indexes them
with the selected backend.

An already populated index is kept unless --force is given, in which case the
collection is recreated and only the newly loaded chunks remain.

Sources:
  path/to/file.txt                   JSON lines, legacy _!_ records or narrative text
  path/to/dir                        every .txt, .jsonl and .md file below it
  github://owner/repo/path[@ref]     files fetched from GitHub

Environment variables:
  QDRANT_HOST         Qdrant hostname (default: localhost)
  QDRANT_PORT         Qdrant gRPC port (default: 6334)
  EMBEDDING_API_KEY   API key for the remote embedding mirror (optional)
  GITHUB_TOKEN        GitHub token for higher rate limits (optional)
  RAG_LEXICAL_ONLY    Skip embedding backends and use TF-IDF`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Print the chunks most relevant to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the most relevant chunks and generates an answer from them.

Without DEEPSEEK_API_KEY the answer is an excerpt of the retrieved context.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index size and backend configuration",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RAG_CONFIG"), "path to a YAML config file")

	indexCmd.Flags().StringVar(&source, "source", "", "source to load (default: data.source from config)")
	indexCmd.Flags().IntVar(&maxDocs, "max-docs", 0, "maximum documents to parse (default: data.max_documents from config)")
	indexCmd.Flags().BoolVar(&forceReload, "force", false, "recreate the index even if it is populated")

	for _, cmd := range []*cobra.Command{searchCmd, askCmd} {
		cmd.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve (default: search.default_top_k from config)")
		cmd.Flags().StringVar(&source, "source", "", "source to load when the lexical backend starts empty")
	}
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full response as JSON")
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print stats as JSON")

	rootCmd.AddCommand(indexCmd, searchCmd, askCmd, statsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if v := os.Getenv("RAG_LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openSystem loads configuration and wires the system for one command.
func openSystem(ctx context.Context) (*rag.System, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	sys, err := rag.Open(ctx, cfg, newLogger())
	if err != nil {
		return nil, err
	}
	backend := sys.Backend()
	fmt.Fprintf(os.Stderr, "Backend: %s (%s)\n", backend.Kind, backend.Model)
	return sys, nil
}

// ensureLexicalLoaded fits the in-memory index before a query. Embedding
// backends read the persisted collection instead.
func ensureLexicalLoaded(ctx context.Context, sys *rag.System) error {
	if sys.Backend().Kind != embedding.KindLexical {
		return nil
	}
	fmt.Fprintln(os.Stderr, "Lexical backend: loading source into memory...")
	_, err := sys.LoadAndIndex(ctx, source, 0, false)
	return err
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	start := time.Now()

	sys, err := openSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	fmt.Println("Indexing...")
	result, err := sys.LoadAndIndex(ctx, source, maxDocs, forceReload)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	if result.AlreadyIndexed {
		fmt.Printf("Index already holds %d chunks, nothing loaded. Use --force to rebuild.\n", result.IndexedTotal)
		return nil
	}
	fmt.Println("Index complete!")
	fmt.Printf("  Documents: %d (%d units skipped)\n", result.Documents, result.SkippedUnits)
	fmt.Printf("  Chunks: %d (%d too short)\n", result.Chunks, result.DroppedChunks)
	fmt.Printf("  Indexed total: %d\n", result.IndexedTotal)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := openSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := ensureLexicalLoaded(ctx, sys); err != nil {
		return err
	}

	results, err := sys.Search(ctx, args[0], topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matching chunks found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s (%s)\n", i+1, r.Score, r.Metadata.ChunkID, r.Metadata.Title)
		fmt.Printf("   %s\n", preview(r.Content, 120))
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sys, err := openSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := ensureLexicalLoaded(ctx, sys); err != nil {
		return err
	}

	resp := sys.Query(ctx, args[0], topK)
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println(resp.Answer)
	fmt.Println()
	fmt.Println("Sources:")
	if len(resp.Sources) == 0 {
		fmt.Println("  (none)")
	}
	for i, r := range resp.Sources {
		fmt.Printf("  %d. [%.4f] %s\n", i+1, r.Score, preview(r.Content, 80))
	}
	fmt.Println()
	fmt.Printf("Search: %s  Generate: %s  Total: %s\n",
		resp.SearchTime.Round(time.Millisecond),
		resp.GenerateTime.Round(time.Millisecond),
		resp.TotalTime.Round(time.Millisecond),
	)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sys, err := openSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	stats := sys.Stats(ctx)
	if jsonOutput {
		return printJSON(stats)
	}

	fmt.Printf("Backend:      %s\n", stats.Backend)
	fmt.Printf("Model:        %s\n", stats.Model)
	fmt.Printf("Dimensions:   %d\n", stats.Dimensions)
	fmt.Printf("Chunks:       %d\n", stats.TotalDocuments)
	fmt.Printf("Chunk size:   %d (overlap %d)\n", stats.ChunkSize, stats.ChunkOverlap)
	fmt.Printf("Collection:   %s\n", stats.CollectionName)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
