// Package main provides the MCP server entry point for the question-answering system.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/rag-qa-server/internal/config"
	mcpserver "github.com/bull/rag-qa-server/internal/mcp"
	"github.com/bull/rag-qa-server/internal/rag"
)

func main() {
	logger := newLogger()

	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load(os.Getenv("RAG_CONFIG"))
	if err != nil {
		return err
	}

	sys, err := rag.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	backend := sys.Backend()
	logger.Info("Backend committed", "kind", backend.Kind, "model", backend.Model, "dimensions", backend.Dimensions)

	// Index the configured source at startup unless it is already populated.
	if getEnvBool("RAG_AUTOLOAD", true) {
		result, err := sys.LoadAndIndex(ctx, "", 0, false)
		if err != nil {
			logger.Warn("Initial load failed, call load_data to index a source", "error", err)
		} else {
			logger.Info("Initial load done", "already_indexed", result.AlreadyIndexed, "indexed_total", result.IndexedTotal)
		}
	}

	server := mcpserver.NewServer(sys, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(sys))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))
	mux.HandleFunc("/", mcpserver.NewLandingHandler())

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + getEnv("PORT", "8080"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if getEnvBool("SERVER_MODE", false) {
		// HTTP mode: serve MCP over HTTP for remote clients
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	// Stdio mode: MCP over stdin/stdout, health endpoint in the background
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()
	defer httpServer.Close()

	return server.Run(ctx)
}

// newLogger writes to stderr; stdout carries the stdio transport.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("RAG_LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
