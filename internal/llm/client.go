// Package llm wraps the external answer-generation service. The service is
// a black-box chat-completion endpoint; the client adds a bounded
// per-request timeout and a small retry budget for transient failures,
// never retrying deterministic errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultModel is the Groq-hosted model used for answer generation.
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultTimeout bounds one answer request including retries.
	DefaultTimeout = 60 * time.Second

	temperature = 0.1
	maxTokens   = 1024
)

var (
	// ErrMissingCredential means no API key is configured. Surfaced only
	// when an answer request is actually attempted.
	ErrMissingCredential = errors.New("answer service credential not set")

	// ErrAnswerService means the external call failed after the retry
	// budget was spent. The caller observes it directly.
	ErrAnswerService = errors.New("answer service request failed")
)

// Config configures the answer-generation client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client issues chat completions against an OpenAI-compatible endpoint.
type Client struct {
	client  openai.Client
	hasKey  bool
	model   string
	timeout time.Duration
}

// NewClient builds the client. An empty API key is tolerated here so the
// process can start and serve retrieval-only paths; Complete fails with
// ErrMissingCredential instead.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
		hasKey:  cfg.APIKey != "",
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends one prompt and returns the response text trimmed of
// surrounding whitespace. Transient failures (rate limits, server errors,
// network) are retried with exponential backoff inside the request timeout;
// anything else fails immediately.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.hasKey {
		return "", ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var answer string
	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model:       openai.ChatModel(c.model),
			Temperature: openai.Float(temperature),
			MaxTokens:   openai.Int(maxTokens),
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("response contained no choices"))
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = c.timeout

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnswerService, err)
	}
	return answer, nil
}

// isTransient reports whether the error is worth retrying: rate limits and
// server-side failures are, malformed requests and auth failures are not.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Non-API errors are network-level and treated as transient.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
