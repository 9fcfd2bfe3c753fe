package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, "toutiao_news", cfg.Qdrant.Collection)
	assert.False(t, cfg.ChatEnabled())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rag.yaml")
	yamlDoc := `
chunking:
  max_chunk_size: 300
  chunk_overlap: 30
embedding:
  lexical_only: true
  alternatives:
    - name: bge-small-zh
    - name: all-minilm
      path: /models/all-minilm
qdrant:
  collection: novels
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("RAG_COLLECTION", "from-env")
	t.Setenv("RAG_CHUNK_OVERLAP", "40")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 40, cfg.Chunking.ChunkOverlap)
	assert.True(t, cfg.Embedding.LexicalOnly)
	require.Len(t, cfg.Embedding.Alternatives, 2)
	assert.Equal(t, "all-minilm", cfg.Embedding.Alternatives[1].Name)
	assert.Equal(t, "/models/all-minilm", cfg.Embedding.Alternatives[1].Path)
	assert.Equal(t, "from-env", cfg.Qdrant.Collection)
	assert.True(t, cfg.ChatEnabled())
	// Untouched sections keep their defaults.
	assert.Equal(t, "deepseek-chat", cfg.Chat.Model)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_OverlapNotSmallerThanChunk(t *testing.T) {
	cfg := Default()
	cfg.Chunking.ChunkOverlap = cfg.Chunking.MaxChunkSize
	assert.Error(t, cfg.Validate())
}

func TestValidate_ContextResults(t *testing.T) {
	for _, n := range []int{0, 1, MaxContextResults} {
		cfg := Default()
		cfg.Search.ContextResults = n
		assert.NoError(t, cfg.Validate(), "context_results=%d", n)
	}

	for _, n := range []int{-1, MaxContextResults + 1, 5} {
		cfg := Default()
		cfg.Search.ContextResults = n
		assert.Error(t, cfg.Validate(), "context_results=%d", n)
	}
}

func TestChatEnabled_PlaceholderKey(t *testing.T) {
	cfg := Default()
	cfg.Chat.APIKey = "sk-YOUR-API-KEY"
	assert.False(t, cfg.ChatEnabled())
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("RAG_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("RAG_TEST_INT", 7))
}
