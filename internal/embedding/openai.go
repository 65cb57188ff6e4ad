// Package embedding provides the text embedders used at build and query
// time. One embedder configuration must serve the whole lifetime of an
// index; the index validates this on load.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits. The API accepts up to 2048 inputs per request.
	DefaultBatchSize = 500
)

// modelDimensions maps known embedding models to their vector size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI-compatible embedder.
type Config struct {
	APIKey    string
	BaseURL   string // override for OpenAI-compatible endpoints, "" for api.openai.com
	Model     string
	Dimension int // required for models not in the known table
	BatchSize int
}

// OpenAI embeds text through an OpenAI-compatible embeddings endpoint. It
// batches requests internally and retries rate-limited batches with
// exponential backoff. Batch boundaries never change the numeric result:
// the endpoint embeds each input independently and the batching here only
// concatenates per-batch rows in input order.
type OpenAI struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
}

// NewOpenAI creates the embedder. The API key is required; the model
// dimension is taken from the known-model table unless configured.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding: API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = modelDimensions[cfg.Model]
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: unknown dimension for model %q", cfg.Model)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: dim,
		batchSize: cfg.BatchSize,
	}, nil
}

// Dimension returns the vector size produced by the configured model.
func (e *OpenAI) Dimension() int { return e.dimension }

// ModelName returns the configured model identifier.
func (e *OpenAI) ModelName() string { return e.model }

// Embed returns one vector per input text, preserving input order.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return inBatches(texts, e.batchSize, func(batch []string) ([][]float32, error) {
		return e.embedBatch(ctx, batch)
	})
}

// embedBatch embeds a single batch, retrying on rate limit errors (HTTP 429)
// with exponential backoff. Other errors fail immediately.
func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf(
				"embedding: got %d vectors for %d inputs", len(resp.Data), len(texts)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// inBatches runs fn over consecutive slices of at most size inputs and
// concatenates the rows in input order.
func inBatches(texts []string, size int, fn func([]string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += size {
		end := min(i+size, len(texts))
		rows, err := fn(texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 rows to the float32 storage type.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
