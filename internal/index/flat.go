// Package index implements the vector index: building a similarity-search
// structure from chunked, embedded documents, persisting it together with
// ordinal-aligned metadata, reloading it, and serving nearest-neighbor
// queries.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bull/rag-search/internal/chunker"
	"github.com/bull/rag-search/internal/domain"
)

// Flat is a brute-force vector index over float32 vectors with a metric
// fixed at construction. Once Ready it is read-only: concurrent queries are
// safe, and adding documents means a full rebuild. A failed build or load
// leaves the index uninitialized.
type Flat struct {
	dir      string
	embedder domain.Embedder
	chunker  *chunker.Chunker
	metric   domain.Metric
	logger   *slog.Logger

	mu      sync.RWMutex
	vectors [][]float32
	records []domain.Record
	ready   bool
}

// NewFlat creates an uninitialized index persisting into dir.
func NewFlat(dir string, embedder domain.Embedder, ch *chunker.Chunker, metric domain.Metric, logger *slog.Logger) *Flat {
	if logger == nil {
		logger = slog.Default()
	}
	if !metric.Valid() {
		metric = domain.MetricCosine
	}
	return &Flat{
		dir:      dir,
		embedder: embedder,
		chunker:  ch,
		metric:   metric,
		logger:   logger,
	}
}

// Metric returns the metric fixed at construction.
func (f *Flat) Metric() domain.Metric { return f.metric }

// Ready reports whether the index has been built or loaded.
func (f *Flat) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}

// Count returns the number of indexed vectors.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// BuildFromDocuments chunks and embeds the documents, builds the structure,
// and persists it, overwriting any prior persisted state. A zero-chunk
// corpus produces a Ready empty index whose persisted header still records
// the embedding configuration, so it stays distinguishable from "not built".
func (f *Flat) BuildFromDocuments(ctx context.Context, docs []domain.Document) error {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, f.chunker.Chunk(doc)...)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := f.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: embedded %d vectors for %d chunks", ErrIntegrity, len(vectors), len(chunks))
	}

	dim := f.embedder.Dimension()
	records := make([]domain.Record, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, embedder reports %d",
				ErrConfigMismatch, i, len(vectors[i]), dim)
		}
		if f.metric == domain.MetricCosine {
			normalize(vectors[i])
		}
		records[i] = ch.Record()
	}

	if err := f.persist(vectors, records); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	f.mu.Lock()
	f.vectors = vectors
	f.records = records
	f.ready = true
	f.mu.Unlock()

	f.logger.Info("index built",
		"documents", len(docs),
		"chunks", len(chunks),
		"dimension", dim,
		"metric", string(f.metric),
	)
	return nil
}

func (f *Flat) persist(vectors [][]float32, records []domain.Record) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	h := header{
		Metric:    f.metric,
		Dimension: f.embedder.Dimension(),
		Count:     len(vectors),
		Model:     f.embedder.ModelName(),
	}
	if err := writeMetadataFile(filepath.Join(f.dir, MetadataFile), records); err != nil {
		return err
	}
	return writeIndexFile(filepath.Join(f.dir, IndexFile), h, vectors)
}

// Load restores the persisted structure and metadata. Missing artifacts
// yield ErrNotBuilt, a count mismatch ErrIntegrity, and a header that
// disagrees with the configured embedder or metric ErrConfigMismatch. On
// any failure the index stays uninitialized.
func (f *Flat) Load(_ context.Context) error {
	indexPath := filepath.Join(f.dir, IndexFile)
	metaPath := filepath.Join(f.dir, MetadataFile)

	h, vectors, err := readIndexFile(indexPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: missing %s", ErrNotBuilt, IndexFile)
	}
	if err != nil {
		return err
	}

	if h.Metric != f.metric {
		return fmt.Errorf("%w: index metric %q, configured %q", ErrConfigMismatch, h.Metric, f.metric)
	}
	if h.Model != f.embedder.ModelName() {
		return fmt.Errorf("%w: index built with model %q, configured %q",
			ErrConfigMismatch, h.Model, f.embedder.ModelName())
	}
	if h.Dimension != f.embedder.Dimension() {
		return fmt.Errorf("%w: index dimension %d, embedder reports %d",
			ErrConfigMismatch, h.Dimension, f.embedder.Dimension())
	}

	records, err := readMetadataFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: missing %s", ErrNotBuilt, MetadataFile)
	}
	if err != nil {
		return err
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("%w: %d vectors but %d metadata records",
			ErrIntegrity, len(vectors), len(records))
	}

	f.mu.Lock()
	f.vectors = vectors
	f.records = records
	f.ready = true
	f.mu.Unlock()

	f.logger.Info("index loaded", "count", len(vectors), "dimension", h.Dimension, "metric", string(h.Metric))
	return nil
}

// Query embeds the text with the build-time embedder configuration and
// returns the topK nearest stored vectors, best first, ties broken by
// ascending insertion order. A Ready empty index returns an empty slice;
// an index that was never built or loaded returns ErrNotBuilt.
func (f *Flat) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	f.mu.RLock()
	ready, count := f.ready, len(f.vectors)
	f.mu.RUnlock()
	if !ready {
		return nil, ErrNotBuilt
	}
	if count == 0 || topK <= 0 {
		return []domain.SearchResult{}, nil
	}

	rows, err := f.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	query := rows[0]

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) > 0 && len(query) != len(f.vectors[0]) {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			ErrConfigMismatch, len(query), len(f.vectors[0]))
	}
	if f.metric == domain.MetricCosine {
		query = append([]float32(nil), query...)
		normalize(query)
	}

	results := make([]domain.SearchResult, len(f.vectors))
	for i, vec := range f.vectors {
		results[i] = domain.SearchResult{
			Score:    f.score(query, vec),
			Ordinal:  i,
			Metadata: f.records[i],
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			if f.metric == domain.MetricL2 {
				return results[i].Score < results[j].Score
			}
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (f *Flat) score(query, stored []float32) float64 {
	switch f.metric {
	case domain.MetricL2:
		var sum float64
		for i := range query {
			d := float64(query[i]) - float64(stored[i])
			sum += d * d
		}
		return sum
	default: // cosine: both sides L2-normalized, inner product suffices
		var dot float64
		for i := range query {
			dot += float64(query[i]) * float64(stored[i])
		}
		return dot
	}
}

// normalize scales v to unit L2 norm in place. Zero vectors are left alone.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
