// Package domain holds the types and contracts shared across the retrieval
// subsystem: documents, chunks, search results, and the embedder and index
// interfaces implemented by the concrete backends.
package domain

import "context"

// Metric identifies the distance function used for similarity search.
// It is fixed when an index is built and must match at query time.
type Metric string

const (
	// MetricCosine scores by inner product over L2-normalized vectors.
	// Higher is better.
	MetricCosine Metric = "cosine"
	// MetricL2 scores by squared Euclidean distance. Lower is better.
	MetricL2 Metric = "l2"
)

// Valid reports whether m names a supported metric.
func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricL2
}

// Document is a unit of raw text produced by a loader, with its provenance.
// Documents are transient: they exist only for the duration of a build.
type Document struct {
	ID      string
	Source  string // file path, URL, or other source identifier
	Text    string
	Page    int    // 1-based page number, 0 when not applicable
	Section string // section heading for structured sources, "" otherwise
}

// Chunk is a contiguous window of a document's text carrying a copy of the
// parent's provenance. Chunks are ordered within a document.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Source     string
	Page       int
	Section    string
}

// Record returns the metadata persisted alongside the chunk's vector.
func (c Chunk) Record() Record {
	return Record{
		Text:    c.Text,
		Source:  c.Source,
		Page:    c.Page,
		Section: c.Section,
	}
}

// Record is the per-vector metadata stored in the index. The ordinal position
// of a record is the only join key to its vector.
type Record struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// SearchResult is one nearest-neighbor match.
type SearchResult struct {
	Score    float64
	Ordinal  int // insertion position of the matched vector
	Metadata Record
}

// Embedder maps text to fixed-dimension vectors. A single embedder
// configuration must be used for the whole lifetime of one index; vectors
// from different configurations are not comparable.
type Embedder interface {
	// Embed returns one vector per input text, preserving input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// Index owns a similarity-search structure over embedded chunks. An index is
// built once, optionally reloaded from durable storage, and then serves
// read-only queries. Build must not run concurrently with queries.
type Index interface {
	// BuildFromDocuments chunks and embeds the documents, constructs the
	// search structure, and persists it, replacing any prior state.
	BuildFromDocuments(ctx context.Context, docs []Document) error
	// Load restores a previously persisted index.
	Load(ctx context.Context) error
	// Query returns up to topK nearest stored vectors for the text, best
	// match first, ties broken by ascending insertion order.
	Query(ctx context.Context, text string, topK int) ([]SearchResult, error)
	// Ready reports whether the index has been built or loaded.
	Ready() bool
	// Count returns the number of indexed vectors.
	Count() int
}
