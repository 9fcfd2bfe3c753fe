// Package config holds runtime configuration for the retrieval pipeline.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Chat      ChatConfig      `yaml:"chat"`
	Search    SearchConfig    `yaml:"search"`
}

// DataConfig describes where documents are loaded from.
type DataConfig struct {
	Source       string `yaml:"source"`        // Local path or github://owner/repo/path[@ref]
	MaxDocuments int    `yaml:"max_documents"` // Cap on parsed documents per load
	GitHubToken  string `yaml:"-"`             // Optional, raises the GitHub API rate limit
}

// ChunkingConfig controls TextChunker and the post-chunk length filter.
type ChunkingConfig struct {
	MaxChunkSize   int `yaml:"max_chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	MinChunkLength int `yaml:"min_chunk_length"`
}

// LocalModel is an embedding model served by a local inference host.
// Path is optional; when set it must exist on disk before the model is tried.
type LocalModel struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// MirrorConfig points at a remote OpenAI-compatible embedding service.
type MirrorConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"`
}

// EmbeddingConfig drives EmbeddingBackendSelector.
type EmbeddingConfig struct {
	LocalHost              string       `yaml:"local_host"`
	Primary                LocalModel   `yaml:"primary"`
	Alternatives           []LocalModel `yaml:"alternatives"`
	Mirror                 MirrorConfig `yaml:"mirror"`
	LexicalOnly            bool         `yaml:"lexical_only"`
	DisableLexicalFallback bool         `yaml:"disable_lexical_fallback"`
	BatchSize              int          `yaml:"batch_size"`
	QueryCacheSize         int          `yaml:"query_cache_size"`
}

// LexicalConfig controls the TF-IDF fallback index.
type LexicalConfig struct {
	MaxFeatures int `yaml:"max_features"`
}

// QdrantConfig locates the vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"-"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// ChatConfig configures answer synthesis. An empty APIKey disables the client.
type ChatConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"-"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// MaxContextResults is the most search results an answer's context may use.
const MaxContextResults = 3

// SearchConfig holds query defaults. ContextResults <= 0 means
// MaxContextResults.
type SearchConfig struct {
	DefaultTopK    int `yaml:"default_top_k"`
	ContextResults int `yaml:"context_results"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:       "data/toutiao_news.txt",
			MaxDocuments: 1000,
		},
		Chunking: ChunkingConfig{
			MaxChunkSize:   500,
			ChunkOverlap:   50,
			MinChunkLength: 20,
		},
		Embedding: EmbeddingConfig{
			LocalHost: "http://localhost:11434/v1",
			Primary: LocalModel{
				Name: "m3e-base",
				Path: "models/AI-ModelScope/m3e-base",
			},
			Mirror: MirrorConfig{
				BaseURL: "https://api-inference.modelscope.cn/v1",
				Model:   "iic/nlp_gte_sentence-embedding_chinese-small",
			},
			BatchSize:      32,
			QueryCacheSize: 1000,
		},
		Lexical: LexicalConfig{
			MaxFeatures: 5000,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "toutiao_news",
		},
		Chat: ChatConfig{
			BaseURL:     "https://api.deepseek.com/v1",
			Model:       "deepseek-chat",
			MaxTokens:   1000,
			Temperature: 0.1,
		},
		Search: SearchConfig{
			DefaultTopK:    5,
			ContextResults: 3,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Data.Source = getEnv("RAG_DATA_SOURCE", c.Data.Source)
	c.Data.GitHubToken = getEnv("GITHUB_TOKEN", c.Data.GitHubToken)
	c.Chunking.MaxChunkSize = getEnvInt("RAG_CHUNK_SIZE", c.Chunking.MaxChunkSize)
	c.Chunking.ChunkOverlap = getEnvInt("RAG_CHUNK_OVERLAP", c.Chunking.ChunkOverlap)

	c.Qdrant.Host = getEnv("QDRANT_HOST", c.Qdrant.Host)
	c.Qdrant.Port = getEnvInt("QDRANT_PORT", c.Qdrant.Port)
	c.Qdrant.APIKey = getEnv("QDRANT_API_KEY", c.Qdrant.APIKey)
	c.Qdrant.Collection = getEnv("RAG_COLLECTION", c.Qdrant.Collection)

	c.Embedding.LocalHost = getEnv("LOCAL_EMBEDDING_HOST", c.Embedding.LocalHost)
	c.Embedding.Primary.Name = getEnv("EMBEDDING_MODEL", c.Embedding.Primary.Name)
	c.Embedding.Primary.Path = getEnv("EMBEDDING_MODEL_PATH", c.Embedding.Primary.Path)
	c.Embedding.Mirror.BaseURL = getEnv("EMBEDDING_MIRROR_URL", c.Embedding.Mirror.BaseURL)
	c.Embedding.Mirror.Model = getEnv("EMBEDDING_MIRROR_MODEL", c.Embedding.Mirror.Model)
	c.Embedding.Mirror.APIKey = getEnv("EMBEDDING_API_KEY", c.Embedding.Mirror.APIKey)
	c.Embedding.LexicalOnly = getEnvBool("RAG_LEXICAL_ONLY", c.Embedding.LexicalOnly)

	c.Chat.BaseURL = getEnv("CHAT_BASE_URL", c.Chat.BaseURL)
	c.Chat.Model = getEnv("CHAT_MODEL", c.Chat.Model)
	c.Chat.APIKey = getEnv("DEEPSEEK_API_KEY", c.Chat.APIKey)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.MaxChunkSize <= 0 {
		errs = append(errs, errors.New("chunking.max_chunk_size must be positive"))
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.MaxChunkSize {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must be in [0, %d)", c.Chunking.MaxChunkSize))
	}
	if c.Qdrant.Collection == "" {
		errs = append(errs, errors.New("qdrant.collection is required"))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, errors.New("embedding.batch_size must be positive"))
	}
	if c.Lexical.MaxFeatures <= 0 {
		errs = append(errs, errors.New("lexical.max_features must be positive"))
	}
	if c.Search.DefaultTopK <= 0 {
		errs = append(errs, errors.New("search.default_top_k must be positive"))
	}
	if c.Search.ContextResults < 0 || c.Search.ContextResults > MaxContextResults {
		errs = append(errs, fmt.Errorf("search.context_results must be in [0, %d]", MaxContextResults))
	}
	return errors.Join(errs...)
}

// ChatEnabled reports whether answer synthesis has credentials.
// The placeholder key shipped in sample .env files counts as unset.
func (c *Config) ChatEnabled() bool {
	key := strings.TrimSpace(c.Chat.APIKey)
	return key != "" && key != "sk-YOUR-API-KEY"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
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
