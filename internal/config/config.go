// Package config loads the application configuration from YAML, filling in
// defaults for anything unset. Secrets never live in the file; the config
// names the environment variables that hold them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bull/rag-search/internal/domain"
)

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	// Type is "openai" or "hash". The hash embedder needs no credentials
	// and exists for offline use.
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
	Dimension int    `yaml:"dimension"`
}

// ChunkerConfig configures how documents are split into chunks. Overlap is
// a pointer so an explicit zero stays distinguishable from unset.
type ChunkerConfig struct {
	Size    int  `yaml:"size"`
	Overlap *int `yaml:"overlap"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	// Type is "flat" or "qdrant".
	Type       string        `yaml:"type"`
	Metric     string        `yaml:"metric"`
	PersistDir string        `yaml:"persist_dir"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant index backend.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// LLMConfig configures the answer-generation client.
type LLMConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root application configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Index    IndexConfig    `yaml:"index"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
}

// Load reads the config from path. A missing file yields the defaults; a
// present file is merged over them.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// applyEnvOverrides lets deployment environments override the file without
// editing it.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAGSEARCH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("RAGSEARCH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" && cfg.Index.Qdrant != nil {
		cfg.Index.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" && cfg.Index.Qdrant != nil {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Index.Qdrant.Port = port
		}
	}
}

// Save writes the config to path, creating directories as needed. The build
// command saves the effective config next to the persisted index as a
// record of what the index was built with; later runs still load their own
// config, and the persisted header rejects an embedder or metric that
// drifted from the build.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// ChunkOverlap returns the configured overlap, defaulted when unset.
func (c *Config) ChunkOverlap() int {
	if c.Chunker.Overlap == nil {
		return 250
	}
	return *c.Chunker.Overlap
}

// Validate rejects values the rest of the application cannot honor.
func (c *Config) Validate() error {
	if !domain.Metric(c.Index.Metric).Valid() {
		return fmt.Errorf("invalid metric %q, want %q or %q",
			c.Index.Metric, domain.MetricCosine, domain.MetricL2)
	}
	if overlap := c.ChunkOverlap(); overlap < 0 || overlap >= c.Chunker.Size {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size %d)",
			overlap, c.Chunker.Size)
	}
	switch c.Embedder.Type {
	case "openai", "hash":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.Index.Type {
	case "flat", "qdrant":
	default:
		return fmt.Errorf("unknown index type %q", c.Index.Type)
	}
	if c.Index.Type == "qdrant" && c.Index.Qdrant == nil {
		return errors.New("index type qdrant requires a qdrant section")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 64
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 700
	}
	if cfg.Chunker.Overlap == nil {
		overlap := 250
		cfg.Chunker.Overlap = &overlap
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = string(domain.MetricCosine)
	}
	if cfg.Index.PersistDir == "" {
		cfg.Index.PersistDir = "index"
	}
	if cfg.Index.Qdrant != nil {
		if cfg.Index.Qdrant.Host == "" {
			cfg.Index.Qdrant.Host = "localhost"
		}
		if cfg.Index.Qdrant.Port == 0 {
			cfg.Index.Qdrant.Port = 6334
		}
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "rag_chunks"
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.1-8b-instant"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
