// Package main provides the rag-search CLI: building the vector index from
// a corpus, serving the retrieval API, and one-shot questions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/rag-search/internal/app"
	"github.com/bull/rag-search/internal/config"
	"github.com/bull/rag-search/internal/domain"
	"github.com/bull/rag-search/internal/github"
	"github.com/bull/rag-search/internal/index"
	"github.com/bull/rag-search/internal/mcp"
	"github.com/bull/rag-search/internal/server"
)

var (
	cfgPath    string
	githubRepo string
	stdio      bool
)

var rootCmd = &cobra.Command{
	Use:   "ragsearch",
	Short: "Retrieval-augmented search over a document corpus",
	Long: `ragsearch chunks and embeds a document corpus into a vector index,
then answers questions grounded in the most similar passages.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings (openai embedder only)
  GROQ_API_KEY   Groq API key for answer generation
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)`,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index from the corpus",
	Long: `Loads the corpus, chunks and embeds it, and persists the index,
overwriting any previous build. The effective configuration is saved next to
the index as a record of what it was built with.

The corpus comes from the configured data directory, or from a GitHub
repository when --github owner/repo@path is given.`,
	RunE: runBuild,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieval API",
	Long: `Loads the persisted index and serves retrieval. If no index has
been built yet, builds one from the corpus first.

By default retrieval is served over HTTP; with --stdio the process instead
speaks the Model Context Protocol on stdin/stdout for agent clients.`,
	RunE: runServe,
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask one question and print the answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	buildCmd.Flags().StringVar(&githubRepo, "github", "", "build from a GitHub corpus, owner/repo@path")
	serveCmd.Flags().BoolVar(&stdio, "stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	rootCmd.AddCommand(buildCmd, serveCmd, queryCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := loadCorpus(ctx, a)
	if err != nil {
		return err
	}
	if err := a.Index.BuildFromDocuments(ctx, docs); err != nil {
		return err
	}
	if err := config.Save(filepath.Join(cfg.Index.PersistDir, "config.yaml"), cfg); err != nil {
		return fmt.Errorf("save effective config: %w", err)
	}

	fmt.Printf("Indexed %d documents into %d chunks\n", len(docs), a.Index.Count())
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Index.Load(ctx); err != nil {
		if !errors.Is(err, index.ErrNotBuilt) {
			return err
		}
		a.Logger.Info("no persisted index, building from corpus", "data_dir", cfg.DataDir)
		docs, err := loadCorpus(ctx, a)
		if err != nil {
			return err
		}
		if err := a.Index.BuildFromDocuments(ctx, docs); err != nil {
			return err
		}
	}

	if stdio {
		return mcp.NewServer(a.Searcher).Run(ctx)
	}
	return server.New(cfg.Server.Addr, a.Searcher, a.Logger).Run(ctx)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Index.Load(ctx); err != nil {
		return err
	}
	answer, err := a.Searcher.Answer(ctx, args[0], 0)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

// loadCorpus reads documents either from the configured data directory or,
// when --github is set, from a repository path.
func loadCorpus(ctx context.Context, a *app.App) ([]domain.Document, error) {
	if githubRepo != "" {
		owner, repo, basePath, err := github.ParseLocation(githubRepo)
		if err != nil {
			return nil, err
		}
		source, err := github.NewSource(owner, repo, basePath, a.Logger)
		if err != nil {
			return nil, err
		}
		return source.Load(ctx)
	}
	return a.Loader.LoadDir(a.Config.DataDir)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
