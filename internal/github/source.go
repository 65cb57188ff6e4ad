// Package github fetches a markdown corpus out of a GitHub repository so an
// index can be built from hosted documentation instead of local files.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"

	"github.com/bull/rag-search/internal/domain"
	"github.com/bull/rag-search/internal/loader"
)

// Source fetches markdown files from a repository path and splits them into
// documents. Rate limits are handled transparently; setting GITHUB_TOKEN
// raises the unauthenticated limit.
type Source struct {
	client   *github.Client
	markdown *loader.Markdown
	logger   *slog.Logger

	owner    string
	repo     string
	basePath string
}

// ParseLocation splits an "owner/repo@path" corpus location. The path part
// is optional and defaults to the repository root.
func ParseLocation(location string) (owner, repo, basePath string, err error) {
	repoPart, basePath, _ := strings.Cut(location, "@")
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", "", fmt.Errorf("invalid github location %q, want owner/repo@path", location)
	}
	return owner, repo, basePath, nil
}

// NewSource creates a source for one repository path.
func NewSource(owner, repo, basePath string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &Source{
		client:   client,
		markdown: loader.NewMarkdown(),
		logger:   logger,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}, nil
}

// Load fetches every markdown file under the base path and splits each into
// section documents. Files that fail to fetch or parse are logged and
// skipped so one bad file never loses the rest of the corpus.
func (s *Source) Load(ctx context.Context) ([]domain.Document, error) {
	paths, err := s.list(ctx, s.basePath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("listed github corpus",
		"owner", s.owner, "repo", s.repo, "path", s.basePath, "files", len(paths))

	var docs []domain.Document
	for _, p := range paths {
		fileDocs, err := s.fetch(ctx, p)
		if err != nil {
			s.logger.Warn("failed to fetch document, skipping", "path", p, "error", err)
			continue
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// list recursively collects the markdown file paths under dir.
func (s *Source) list(ctx context.Context, dir string) ([]string, error) {
	_, contents, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, dir, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var paths []string
	for _, item := range contents {
		if item.Type == nil || item.Name == nil || item.Path == nil {
			continue
		}
		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") {
				paths = append(paths, *item.Path)
			}
		case "dir":
			sub, err := s.list(ctx, *item.Path)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// fetch downloads one markdown file and splits it into section documents.
// Each document's source is the file's raw URL so answers can cite it.
func (s *Source) fetch(ctx context.Context, filePath string) ([]domain.Document, error) {
	content, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", filePath, err)
	}
	if content == nil || content.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", filePath)
	}

	raw, err := base64.StdEncoding.DecodeString(*content.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}

	origin := fmt.Sprintf("https://github.com/%s/%s/blob/main/%s",
		s.owner, s.repo, path.Clean(filePath))
	return s.markdown.LoadBytes(raw, origin)
}
