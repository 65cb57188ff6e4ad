// Package app assembles the application from its configuration: embedder,
// index backend, answer client, loaders, and the searcher tying them
// together. Everything hangs off one App value; there is no package-level
// state.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bull/rag-search/internal/chunker"
	"github.com/bull/rag-search/internal/config"
	"github.com/bull/rag-search/internal/domain"
	"github.com/bull/rag-search/internal/embedding"
	"github.com/bull/rag-search/internal/index"
	"github.com/bull/rag-search/internal/llm"
	"github.com/bull/rag-search/internal/loader"
	"github.com/bull/rag-search/internal/qdrant"
	"github.com/bull/rag-search/internal/search"
)

// App holds the wired components for one run.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Embedder domain.Embedder
	Index    domain.Index
	Searcher *search.Searcher
	Loader   *loader.Registry

	closers []func() error
}

// New wires the application. Credentials are read from the environment
// variables the config names; a missing embedding key fails here for the
// openai embedder, while a missing answer key is tolerated until the first
// completion.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	ch := chunker.New(cfg.Chunker.Size, cfg.ChunkOverlap())
	metric := domain.Metric(cfg.Index.Metric)

	switch cfg.Index.Type {
	case "qdrant":
		q := cfg.Index.Qdrant
		store, err := qdrant.New(q.Host, q.Port, q.Collection, embedder, ch, metric, logger)
		if err != nil {
			return nil, err
		}
		a.Index = store
		a.closers = append(a.closers, store.Close)
	default:
		a.Index = index.NewFlat(cfg.Index.PersistDir, embedder, ch, metric, logger)
	}

	answerKey := os.Getenv(cfg.LLM.APIKeyEnv)
	if answerKey == "" {
		logger.Warn("answer service credential not set, summaries will fail", "env", cfg.LLM.APIKeyEnv)
	}
	answerer := llm.NewClient(llm.Config{
		APIKey:  answerKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})

	a.Searcher = search.New(a.Index, answerer, cfg.Search.TopK, logger)
	a.Loader = loader.NewRegistry(logger)
	return a, nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var firstErr error
	for _, close := range a.closers {
		if err := close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newEmbedder(cfg *config.Config) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hash":
		return embedding.NewHash(cfg.Embedder.Dimension), nil
	case "openai":
		return embedding.NewOpenAI(embedding.Config{
			APIKey:    os.Getenv(cfg.Embedder.APIKeyEnv),
			BaseURL:   cfg.Embedder.BaseURL,
			Model:     cfg.Embedder.Model,
			Dimension: cfg.Embedder.Dimension,
			BatchSize: cfg.Embedder.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}
