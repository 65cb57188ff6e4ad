// Package loader turns corpus files into documents. Loaders are registered
// per file extension; each loader contains its own failures so one bad file
// never blocks ingestion of the rest of the corpus.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bull/rag-search/internal/domain"
)

// ErrUnsupported means no loader is registered for the file's extension.
var ErrUnsupported = errors.New("unsupported file type")

// Loader extracts documents from one file format.
type Loader interface {
	// Extensions returns the lowercase extensions handled, with leading dot.
	Extensions() []string
	// Load extracts plain-text documents with provenance from the file.
	Load(path string) ([]domain.Document, error)
}

// Registry dispatches files to loaders by extension.
type Registry struct {
	loaders map[string]Loader
	logger  *slog.Logger
}

// NewRegistry returns a registry with the default loaders registered:
// plain text, markdown, PDF, and CSV.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{loaders: make(map[string]Loader), logger: logger}
	r.Register(Plaintext{})
	r.Register(NewMarkdown())
	r.Register(PDF{})
	r.Register(CSV{})
	return r
}

// Register adds a loader, replacing any previous loader for its extensions.
func (r *Registry) Register(l Loader) {
	for _, ext := range l.Extensions() {
		r.loaders[ext] = l
	}
}

// Supported reports whether some loader handles the file's extension.
func (r *Registry) Supported(path string) bool {
	_, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadFile extracts documents from one file.
func (r *Registry) LoadFile(path string) ([]domain.Document, error) {
	l, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return l.Load(path)
}

// LoadDir walks dir and loads every supported file. Per-file extraction
// failures are logged and the file skipped, maximizing coverage of the
// remaining corpus. The returned slice may be empty.
func (r *Registry) LoadDir(dir string) ([]domain.Document, error) {
	var docs []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !r.Supported(path) {
			r.logger.Debug("skipping unsupported file", "path", path)
			return nil
		}
		loaded, err := r.LoadFile(path)
		if err != nil {
			r.logger.Warn("failed to load document, skipping", "path", path, "error", err)
			return nil
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	r.logger.Info("corpus loaded", "dir", dir, "documents", len(docs))
	return docs, nil
}
