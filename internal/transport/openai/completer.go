package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/metrics"
)

const (
	keywordsSystemPrompt = "You extract search keywords from legal questions. " +
		"Reply with a JSON object of the form {\"keywords\": [\"...\"]} containing " +
		"between 1 and 32 significant words of the question, including " +
		"morphological variants, without stop words."

	maxExtractedKeywords = 32

	paraphraseSystemPrompt = "You rephrase legal search queries. Reply with a JSON " +
		"object of the form {\"queries\": [\"...\"]} containing alternative phrasings " +
		"of the question that keep its legal meaning."

	rewriteSystemPrompt = "You rewrite legal provisions so they are easy to find. " +
		"Describe the situations the provision applies to, from the perspective of " +
		"someone searching for it. Reply with plain text."
)

// Completer is a chat-completion provider for keyword extraction, query
// paraphrasing and provision rewriting. Calls go through a circuit breaker
// so a misbehaving provider fails fast instead of stalling every request.
type Completer struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
}

// CompleterConfig holds the completion provider settings.
type CompleterConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Logger     *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(cfg *CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "completion-provider",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Completer{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: maxRetries,
		retryDelay: retryBaseDelay,
		breaker:    breaker,
		logger:     cfg.Logger,
	}
}

// ExtractKeywords asks the model for the significant words of a query.
// Malformed replies are retried up to the configured limit.
func (c *Completer) ExtractKeywords(ctx context.Context, query string) ([]string, error) {
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	err := c.completeJSON(ctx, "keywords", keywordsSystemPrompt, query, &parsed)
	if err != nil {
		return nil, err
	}
	if len(parsed.Keywords) == 0 {
		return nil, fmt.Errorf("no keywords in completion: %w", domain.ErrCompletionProviderError)
	}
	if len(parsed.Keywords) > maxExtractedKeywords {
		parsed.Keywords = parsed.Keywords[:maxExtractedKeywords]
	}
	return parsed.Keywords, nil
}

// Paraphrase asks the model for up to n alternative phrasings of a query.
func (c *Completer) Paraphrase(ctx context.Context, query string, n int) ([]string, error) {
	var parsed struct {
		Queries []string `json:"queries"`
	}
	prompt := fmt.Sprintf("Give up to %d alternative phrasings for: %s", n, query)
	err := c.completeJSON(ctx, "paraphrase", paraphraseSystemPrompt, prompt, &parsed)
	if err != nil {
		return nil, err
	}
	if len(parsed.Queries) > n {
		parsed.Queries = parsed.Queries[:n]
	}
	return parsed.Queries, nil
}

// RewriteProvision produces a retrieval-oriented description of a provision.
func (c *Completer) RewriteProvision(ctx context.Context, bookCode, title, text string) (string, error) {
	prompt := fmt.Sprintf("%s %s\n\n%s", bookCode, title, text)
	var out string
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		var err error
		out, err = c.complete(ctx, "rewrite", rewriteSystemPrompt, prompt, false)
		return err
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty rewrite completion: %w", domain.ErrCompletionProviderError)
	}
	return out, nil
}

// completeJSON runs a JSON-mode completion and unmarshals the reply into v.
// Provider failures and malformed output both consume attempts from the
// same bounded retry budget.
func (c *Completer) completeJSON(ctx context.Context, purpose, system, user string, v any) error {
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		content, err := c.complete(ctx, purpose, system, user, true)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("completion call failed",
					zap.String("purpose", purpose),
					zap.Error(err))
			}
			return err
		}
		if err := json.Unmarshal([]byte(content), v); err != nil {
			if c.logger != nil {
				c.logger.Warn("completion returned malformed JSON",
					zap.String("purpose", purpose),
					zap.Error(err))
			}
			return fmt.Errorf("malformed completion JSON: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s after %d attempts: %v: %w",
			purpose, c.maxRetries, err, domain.ErrCompletionProviderError)
	}
	return nil
}

func (c *Completer) complete(ctx context.Context, purpose, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	content, err := c.breaker.Execute(func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", parseCompletionAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, purpose, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("completion provider unavailable: %w", domain.ErrCompletionProviderError)
		}
		return "", err
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, purpose, "success").Inc()
	return content, nil
}

func parseCompletionAPIError(err error) error {
	wrap := domain.ErrCompletionProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("completion request failed: %w", wrap)
}
