package semantic

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/resilience"
	"github.com/sttbench/sttbench/pkg/score"
)

func TestParseFacts(t *testing.T) {
	body := `{"facts":[
		{"subject":"speaker","predicate":"received","object":"award","verdict":"both"},
		{"subject":"speaker","predicate":"thanked","object":"jury","verdict":"expected"},
		{"subject":"speaker","predicate":"mentioned","object":"weather","verdict":"got"}
	]}`
	facts, err := parseFacts(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}
	if facts[0].Verdict != score.VerdictBoth ||
		facts[1].Verdict != score.VerdictExpectedOnly ||
		facts[2].Verdict != score.VerdictGotOnly {
		t.Fatalf("verdict mapping broken: %+v", facts)
	}
}

func TestParseFactsStripsCodeFence(t *testing.T) {
	body := "```json\n{\"facts\":[{\"subject\":\"a\",\"predicate\":\"b\",\"object\":\"c\",\"verdict\":\"both\"}]}\n```"
	facts, err := parseFacts(body)
	if err != nil || len(facts) != 1 {
		t.Fatalf("fenced payload: facts=%v err=%v", facts, err)
	}
}

func TestParseFactsRejectsUnknownVerdict(t *testing.T) {
	if _, err := parseFacts(`{"facts":[{"subject":"a","predicate":"b","object":"c","verdict":"maybe"}]}`); err == nil {
		t.Fatalf("unknown verdict must fail")
	}
}

func TestParseFactsRejectsGarbage(t *testing.T) {
	if _, err := parseFacts("I could not extract any facts."); err == nil {
		t.Fatalf("prose payload must fail")
	}
}

func TestParseFactsEmptyList(t *testing.T) {
	facts, err := parseFacts(`{"facts":[]}`)
	if err != nil || len(facts) != 0 {
		t.Fatalf("empty list: facts=%v err=%v", facts, err)
	}
}

func TestNewExtractorRequiresKey(t *testing.T) {
	if _, err := NewExtractor(Config{}, nil); !errorsx.HasReason(err, errorsx.ReasonScoringUnavailable) {
		t.Fatalf("missing key: %v", err)
	}
}

func TestMapRateLimit(t *testing.T) {
	err := mapRateLimit(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("429 must map to a rate limit error, got %v", err)
	}
	other := errors.New("dial tcp: refused")
	if mapRateLimit(other) != other {
		t.Fatalf("non-429 errors must pass through")
	}
}

func TestExtractFailsFastWhenCircuitOpen(t *testing.T) {
	e, err := NewExtractor(Config{APIKey: "sk-test"}, nil)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	for i := 0; i < 3; i++ {
		e.breaker.OnError(resilience.RateLimitError{Provider: "openai"})
	}
	_, err = e.Extract(context.Background(), "a", "b", "cs")
	if !errorsx.HasReason(err, errorsx.ReasonScoringUnavailable) {
		t.Fatalf("open circuit must surface scoring_unavailable, got %v", err)
	}
}
