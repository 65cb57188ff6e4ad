// Package search implements retrieval-augmented answering: it retrieves the
// nearest passages from the vector index, assembles a bounded context block,
// and delegates answer generation to the external completion service.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/rag-search/internal/domain"
)

// NoEvidenceAnswer is returned when retrieval produces no usable context.
// No external call is made on this path.
const NoEvidenceAnswer = "No relevant documents found."

// DefaultTopK is the number of passages retrieved per question when the
// caller does not say otherwise.
const DefaultTopK = 3

const promptTemplate = `You are a knowledgeable and reliable medical assistant specializing in heart diseases and general health conditions.
Use the provided context to accurately answer the user's question.
Focus on medical accuracy, clarity, and relevance to the question.
If the question is about heart disease, provide detailed and expert-level insights on causes, symptoms, treatment, prevention, and lifestyle recommendations.
If it concerns another disease, use the context to give a clear, concise, and medically sound response.

Do NOT copy the text from the context verbatim - summarize and rephrase it naturally in an informative, human-like tone.
Only include information that is supported by the context. Avoid adding assumptions or unverified details.

Question: %s

Context: %s

Answer:`

// AnswerClient is the external answer-generation service.
type AnswerClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Searcher orchestrates retrieval and answer generation against one index.
type Searcher struct {
	index  domain.Index
	llm    AnswerClient
	topK   int
	logger *slog.Logger
}

// New creates a Searcher with the given default topK (DefaultTopK when <= 0).
func New(index domain.Index, llm AnswerClient, topK int, logger *slog.Logger) *Searcher {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{index: index, llm: llm, topK: topK, logger: logger}
}

// TopK returns the default passage count.
func (s *Searcher) TopK() int { return s.topK }

// Ready reports whether the underlying index can serve queries.
func (s *Searcher) Ready() bool { return s.index.Ready() }

// Count returns the number of indexed passages.
func (s *Searcher) Count() int { return s.index.Count() }

// Retrieve returns the raw topK matches for the question.
func (s *Searcher) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.topK
	}
	return s.index.Query(ctx, query, topK)
}

// Answer retrieves topK passages for the question and asks the answer
// service to ground its response in them. When no passage carries usable
// text it returns NoEvidenceAnswer without calling the service. The context
// block is a plain ordered join of the passages; no deduplication and no
// length cap beyond topK.
func (s *Searcher) Answer(ctx context.Context, query string, topK int) (string, error) {
	answer, _, err := s.AnswerWithEvidence(ctx, query, topK)
	return answer, err
}

// AnswerWithEvidence is Answer plus the retrieved passages the response was
// grounded in, from a single index scan. On the no-evidence path the
// passages are whatever retrieval returned, possibly none.
func (s *Searcher) AnswerWithEvidence(ctx context.Context, query string, topK int) (string, []domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.topK
	}

	results, err := s.index.Query(ctx, query, topK)
	if err != nil {
		return "", nil, fmt.Errorf("retrieve: %w", err)
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Metadata.Text == "" {
			continue
		}
		texts = append(texts, r.Metadata.Text)
	}
	if len(texts) == 0 {
		s.logger.Debug("no evidence retrieved", "query", query)
		return NoEvidenceAnswer, results, nil
	}

	prompt := fmt.Sprintf(promptTemplate, query, strings.Join(texts, "\n\n"))
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	s.logger.Debug("answered", "query", query, "passages", len(texts))
	return strings.TrimSpace(answer), results, nil
}
