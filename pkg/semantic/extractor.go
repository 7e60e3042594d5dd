// Package semantic extracts meaning-facts from a transcript pair with
// a single chat-completion call, for the semantic error rate. The
// extractor is optional: a benchmark without a credential simply runs
// without one.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/resilience"
	"github.com/sttbench/sttbench/pkg/score"
)

const systemPromptTemplate = `You are evaluating speech-to-text accuracy for %s audio transcription.

Your task: given an expected (ground-truth) transcript and an STT output, extract
semantic facts from both and classify each fact.

A fact is a simple statement: subject + predicate + object.
Focus on: named entities, events, quotes, attributions, and statements of fact.
Pick only information relevant for understanding the conversation.
Ignore punctuation, word-order differences, and morphological variation.

Classify each fact with a verdict:
- "both"     means the fact is present in both the expected and the STT output
- "expected" means the fact is only in the expected text (information lost by STT)
- "got"      means the fact is only in the STT output (possibly hallucinated or added)

Return JSON only, no markdown, using this exact schema:
{
  "facts": [
    {"subject": "...", "predicate": "...", "object": "...", "verdict": "both|expected|got"}
  ]
}`

type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Retries is the number of additional attempts after a transient
	// failure.
	Retries int
	Backoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Retries == 0 {
		c.Retries = 1
	}
	if c.Backoff == 0 {
		c.Backoff = 500 * time.Millisecond
	}
	return c
}

// Extractor implements score.FactExtractor over the chat-completions
// API. Transient failures are retried; rate limits trip a circuit
// breaker shared across the run so later assets fail fast instead of
// stacking 429s.
type Extractor struct {
	cfg     Config
	client  *openai.Client
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, errorsx.Wrap(fmt.Errorf("fact extractor: api key required"), errorsx.ReasonScoringUnavailable)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Extractor{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientCfg),
		retry:   resilience.NewRetryPolicy(cfg.Retries, cfg.Backoff),
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		logger:  logging.NewComponentLogger(logger, "fact_extractor"),
	}, nil
}

// Extract runs one completion over the transcript pair and parses the
// fact list.
func (e *Extractor) Extract(ctx context.Context, expected, got, language string) ([]score.Fact, error) {
	if !e.breaker.Allow() {
		return nil, errorsx.Wrap(
			fmt.Errorf("fact extraction: %w", resilience.RateLimitError{Provider: "openai", Message: "circuit open"}),
			errorsx.ReasonScoringUnavailable,
		)
	}
	if language == "" {
		language = "the source language's"
	}
	req := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPromptTemplate, language),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Expected transcript:\n%s\n\nSTT output:\n%s\n", expected, got),
			},
		},
	}

	var facts []score.Fact
	err := e.retry.Do(ctx, func() error {
		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return mapRateLimit(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion")
		}
		facts, err = parseFacts(resp.Choices[0].Message.Content)
		return err
	})
	if err != nil {
		e.breaker.OnError(err)
		return nil, errorsx.Wrap(fmt.Errorf("fact extraction: %w", err), errorsx.ReasonScoringUnavailable)
	}
	e.breaker.OnSuccess()
	e.logger.Debug("facts extracted", slog.Int("count", len(facts)))
	return facts, nil
}

// mapRateLimit converts a 429 from the API into the error the breaker
// understands.
func mapRateLimit(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}
	}
	return err
}

type factPayload struct {
	Facts []struct {
		Subject   string `json:"subject"`
		Predicate string `json:"predicate"`
		Object    string `json:"object"`
		Verdict   string `json:"verdict"`
	} `json:"facts"`
}

// parseFacts decodes the completion body. Code fences are stripped
// first; models wrap JSON in them despite instructions often enough.
func parseFacts(body string) ([]score.Fact, error) {
	body = stripCodeFence(body)
	var payload factPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("malformed fact payload: %w", err)
	}
	facts := make([]score.Fact, 0, len(payload.Facts))
	for _, f := range payload.Facts {
		verdict, err := parseVerdict(f.Verdict)
		if err != nil {
			return nil, err
		}
		facts = append(facts, score.Fact{
			Subject:   f.Subject,
			Predicate: f.Predicate,
			Object:    f.Object,
			Verdict:   verdict,
		})
	}
	return facts, nil
}

func parseVerdict(s string) (score.Verdict, error) {
	switch s {
	case "both":
		return score.VerdictBoth, nil
	case "expected":
		return score.VerdictExpectedOnly, nil
	case "got":
		return score.VerdictGotOnly, nil
	default:
		return "", fmt.Errorf("unknown verdict %q", s)
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var _ score.FactExtractor = (*Extractor)(nil)
