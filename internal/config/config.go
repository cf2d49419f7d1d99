// Package config provides configuration loading for docqd.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for docqd.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Generation  GenerationConfig  `koanf:"generation"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// MaxUploadSize caps multipart PDF uploads, in bytes.
	MaxUploadSize int64 `koanf:"max_upload_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Provider selects the store implementation: "chromem" (default) or "qdrant".
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds settings for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`
	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
	// Collection is the collection name for indexed chunks.
	Collection string `koanf:"collection"`
}

// QdrantConfig holds settings for the external Qdrant store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`
	// Port is the Qdrant gRPC port (6334, not the 6333 HTTP port).
	Port int `koanf:"port"`
	// Collection is the collection name for indexed chunks.
	Collection string `koanf:"collection"`
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "openai" (default) or "fastembed".
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// BaseURL overrides the provider endpoint (any OpenAI-compatible server).
	BaseURL string `koanf:"base_url"`
	// APIKey authenticates against the provider.
	APIKey Secret `koanf:"api_key"`
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string `koanf:"cache_dir"`
}

// GenerationConfig holds answer generation provider settings.
type GenerationConfig struct {
	// Provider selects the generator: "openai" (default) covers any
	// OpenAI-compatible chat endpoint.
	Provider string `koanf:"provider"`
	// Model is the chat model used to synthesize answers.
	Model string `koanf:"model"`
	// BaseURL overrides the provider endpoint (any OpenAI-compatible server).
	BaseURL string `koanf:"base_url"`
	// APIKey authenticates against the provider.
	APIKey Secret `koanf:"api_key"`
	// Temperature for answer sampling.
	Temperature float32 `koanf:"temperature"`
}

// PipelineConfig holds retrieval pipeline settings.
type PipelineConfig struct {
	// TopK is the number of chunks retrieved per query.
	TopK int `koanf:"top_k"`
	// ContextBudget caps the assembled evidence block, in characters.
	ContextBudget int `koanf:"context_budget"`
	// Chunking selects the chunking policy: "page" (default) or "split".
	Chunking string `koanf:"chunking"`
	// ChunkSize is the sub-chunk size in characters (split mode).
	ChunkSize int `koanf:"chunk_size"`
	// ChunkOverlap is the sub-chunk overlap in characters (split mode).
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 32 * 1024 * 1024 // 32MB
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.Chromem.Path == "" {
		c.VectorStore.Chromem.Path = "~/.local/share/docqd/vectorstore"
	}
	if c.VectorStore.Chromem.Collection == "" {
		c.VectorStore.Chromem.Collection = "pdf_documents"
	}
	if c.VectorStore.Qdrant.Host == "" {
		c.VectorStore.Qdrant.Host = "localhost"
	}
	if c.VectorStore.Qdrant.Port == 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.VectorStore.Qdrant.Collection == "" {
		c.VectorStore.Qdrant.Collection = "pdf_documents"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "openai"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "text-embedding-3-small"
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "openai"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Pipeline.TopK == 0 {
		c.Pipeline.TopK = 3
	}
	if c.Pipeline.ContextBudget == 0 {
		c.Pipeline.ContextBudget = 8000
	}
	if c.Pipeline.Chunking == "" {
		c.Pipeline.Chunking = "page"
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = 1000
	}
	if c.Pipeline.ChunkOverlap == 0 {
		c.Pipeline.ChunkOverlap = 100
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: invalid qdrant port: %d", ErrInvalidConfig, c.VectorStore.Qdrant.Port)
		}
	}
	switch c.Embeddings.Provider {
	case "openai", "fastembed":
	default:
		return fmt.Errorf("%w: unsupported embeddings provider %q (supported: openai, fastembed)", ErrInvalidConfig, c.Embeddings.Provider)
	}
	switch c.Generation.Provider {
	case "openai":
	default:
		return fmt.Errorf("%w: unsupported generation provider %q (supported: openai)", ErrInvalidConfig, c.Generation.Provider)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.Pipeline.TopK)
	}
	if c.Pipeline.ContextBudget <= 0 {
		return fmt.Errorf("%w: context_budget must be positive, got %d", ErrInvalidConfig, c.Pipeline.ContextBudget)
	}
	switch c.Pipeline.Chunking {
	case "page", "split":
	default:
		return fmt.Errorf("%w: unsupported chunking policy %q (supported: page, split)", ErrInvalidConfig, c.Pipeline.Chunking)
	}
	if c.Pipeline.Chunking == "split" {
		if c.Pipeline.ChunkSize <= 0 {
			return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.Pipeline.ChunkSize)
		}
		if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
			return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidConfig, c.Pipeline.ChunkOverlap)
		}
	}
	return nil
}
