// Package qdrant backs the vector index with a Qdrant server instead of the
// on-disk flat index, for corpora too large to scan in memory.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/rag-search/internal/chunker"
	"github.com/bull/rag-search/internal/domain"
	"github.com/bull/rag-search/internal/index"
)

const (
	// vectorName is the named vector every chunk point carries.
	vectorName = "content"
	// upsertBatchSize bounds points per upsert request.
	upsertBatchSize = 100
)

// Store is a vector index persisted in a Qdrant collection. Points are keyed
// by chunk ordinal so vectors and metadata can never drift apart, and the
// collection records the embedding model so Load can reject a configuration
// change. Scores are Qdrant's native similarity scores for the configured
// metric.
type Store struct {
	client     *qdrant.Client
	embedder   domain.Embedder
	chunker    *chunker.Chunker
	collection string
	metric     domain.Metric
	logger     *slog.Logger

	mu    sync.RWMutex
	ready bool
	count int
}

// New connects to Qdrant and verifies it is healthy, retrying with backoff
// for up to 30 seconds before giving up.
func New(host string, port int, collection string, embedder domain.Embedder, ch *chunker.Chunker, metric domain.Metric, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !metric.Valid() {
		metric = domain.MetricCosine
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	s := &Store{
		client:     client,
		embedder:   embedder,
		chunker:    ch,
		collection: collection,
		metric:     metric,
		logger:     logger,
	}

	if err := s.waitHealthy(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable at %s:%d: %w", host, port, err)
	}
	return s, nil
}

func (s *Store) waitHealthy(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		result, err := s.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("invalid health check response")
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// Close closes the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ready reports whether the collection has been built or loaded.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Count returns the number of indexed vectors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) distance() qdrant.Distance {
	if s.metric == domain.MetricL2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}

// BuildFromDocuments chunks and embeds the documents and replaces the
// collection's contents, overwriting any prior build. A failed build drops
// the collection so a later Load cannot pick up partial state.
func (s *Store) BuildFromDocuments(ctx context.Context, docs []domain.Document) error {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.chunker.Chunk(doc)...)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: embedded %d vectors for %d chunks", index.ErrIntegrity, len(vectors), len(chunks))
	}
	dim := s.embedder.Dimension()
	for i := range vectors {
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, embedder reports %d",
				index.ErrConfigMismatch, i, len(vectors[i]), dim)
		}
	}

	if err := s.recreateCollection(ctx); err != nil {
		return err
	}
	if err := s.upsertChunks(ctx, chunks, vectors); err != nil {
		// drop the half-written collection rather than leave it loadable
		_ = s.client.DeleteCollection(ctx, s.collection)
		return err
	}

	s.mu.Lock()
	s.ready = true
	s.count = len(chunks)
	s.mu.Unlock()

	s.logger.Info("qdrant collection built",
		"collection", s.collection,
		"documents", len(docs),
		"chunks", len(chunks),
		"dimension", dim,
		"metric", string(s.metric),
	)
	return nil
}

func (s *Store) recreateCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.embedder.Dimension()),
				Distance: s.distance(),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *Store) upsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	model := s.embedder.ModelName()
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			rec := chunks[i].Record()
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(vectors[i]...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":    rec.Text,
					"source":  rec.Source,
					"page":    rec.Page,
					"section": rec.Section,
					"model":   model,
				}),
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(policy, ctx))
}

// Load adopts an existing collection. A missing collection yields
// ErrNotBuilt; a collection whose vector size or distance disagrees with the
// configured embedder and metric yields ErrConfigMismatch.
func (s *Store) Load(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: collection %q does not exist", index.ErrNotBuilt, s.collection)
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()[vectorName]
	if params == nil {
		return fmt.Errorf("%w: collection %q has no %q vector", index.ErrConfigMismatch, s.collection, vectorName)
	}
	if got, want := int(params.GetSize()), s.embedder.Dimension(); got != want {
		return fmt.Errorf("%w: collection dimension %d, embedder reports %d", index.ErrConfigMismatch, got, want)
	}
	if params.GetDistance() != s.distance() {
		return fmt.Errorf("%w: collection distance %s, configured metric %q",
			index.ErrConfigMismatch, params.GetDistance(), s.metric)
	}

	s.mu.Lock()
	s.ready = true
	s.count = int(info.GetPointsCount())
	s.mu.Unlock()

	s.logger.Info("qdrant collection loaded",
		"collection", s.collection, "count", s.count, "metric", string(s.metric))
	return nil
}

// Query embeds the text and returns the topK nearest chunks, best first,
// with Qdrant's native scores for the collection's distance.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	ready, count := s.ready, s.count
	s.mu.RUnlock()
	if !ready {
		return nil, index.ErrNotBuilt
	}
	if count == 0 || topK <= 0 {
		return []domain.SearchResult{}, nil
	}

	rows, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	using := vectorName
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(rows[0]...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		payload := p.Payload
		results = append(results, domain.SearchResult{
			Score:   float64(p.Score),
			Ordinal: int(p.Id.GetNum()),
			Metadata: domain.Record{
				Text:    payload["text"].GetStringValue(),
				Source:  payload["source"].GetStringValue(),
				Page:    int(payload["page"].GetIntegerValue()),
				Section: payload["section"].GetStringValue(),
			},
		})
	}
	return results, nil
}
