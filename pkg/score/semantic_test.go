package score

import (
	"context"
	"fmt"
	"testing"

	"github.com/sttbench/sttbench/pkg/errorsx"
)

func TestSemanticResultCounts(t *testing.T) {
	r := NewSemanticResult([]Fact{
		{Subject: "speaker", Predicate: "received", Object: "award", Verdict: VerdictBoth},
		{Subject: "speaker", Predicate: "thanked", Object: "jury", Verdict: VerdictExpectedOnly},
		{Subject: "speaker", Predicate: "mentioned", Object: "weather", Verdict: VerdictGotOnly},
	})
	if r.Both != 1 || r.Missing != 1 || r.Extra != 1 {
		t.Fatalf("counts: %+v", r)
	}
	if r.SER != 50 {
		t.Fatalf("SER = %v, want 50", r.SER)
	}
	if r.Understanding != 50 {
		t.Fatalf("understanding = %v, want 50", r.Understanding)
	}
	if r.PctExtra != 50 {
		t.Fatalf("pct_extra = %v, want 50", r.PctExtra)
	}
}

func TestSemanticResultBoundaries(t *testing.T) {
	r := NewSemanticResult(nil)
	if r.SER != 0 || r.PctExtra != 0 || r.Understanding != 100 {
		t.Fatalf("empty fact set: %+v", r)
	}

	r = NewSemanticResult([]Fact{{Verdict: VerdictExpectedOnly}})
	if r.SER != 100 || r.Understanding != 0 {
		t.Fatalf("all missing: %+v", r)
	}

	r = NewSemanticResult([]Fact{{Verdict: VerdictBoth}, {Verdict: VerdictBoth}})
	if r.SER != 0 || r.PctExtra != 0 {
		t.Fatalf("all matched: %+v", r)
	}
}

func TestSemanticResultRounding(t *testing.T) {
	// 1 missing of 3 expected facts: 33.333... rounds to 33.3.
	r := NewSemanticResult([]Fact{
		{Verdict: VerdictBoth},
		{Verdict: VerdictBoth},
		{Verdict: VerdictExpectedOnly},
	})
	if r.SER != 33.3 {
		t.Fatalf("SER = %v, want 33.3", r.SER)
	}
	if r.Understanding != 66.7 {
		t.Fatalf("understanding = %v, want 66.7", r.Understanding)
	}
}

type stubExtractor struct {
	facts []Fact
	err   error
}

func (s stubExtractor) Extract(ctx context.Context, expected, got, language string) ([]Fact, error) {
	return s.facts, s.err
}

func TestScorerWithoutExtractor(t *testing.T) {
	s := NewScorer(nil, nil)
	report, err := s.Score(context.Background(), "Potom jsem dostal cenu.", "Potom jsem dostal cenu", "cs")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if report.Semantic != nil {
		t.Fatalf("no extractor configured, semantic result must be absent")
	}
	if report.CER == 0 {
		t.Fatalf("CER must still be computed")
	}
}

func TestScorerWithExtractor(t *testing.T) {
	s := NewScorer(stubExtractor{facts: []Fact{{Verdict: VerdictBoth}}}, nil)
	report, err := s.Score(context.Background(), "a", "a", "en")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if report.Semantic == nil || report.Semantic.Both != 1 || report.Semantic.SER != 0 {
		t.Fatalf("semantic result: %+v", report.Semantic)
	}
}

func TestScorerExtractorFailureOmitsSemantic(t *testing.T) {
	s := NewScorer(stubExtractor{err: fmt.Errorf("upstream 500")}, nil)
	report, err := s.Score(context.Background(), "Potom jsem dostal cenu.", "Potom jsem dostal cenu", "cs")
	if !errorsx.HasReason(err, errorsx.ReasonScoringUnavailable) {
		t.Fatalf("expected scoring_unavailable reason, got %v", err)
	}
	if report.Semantic != nil {
		t.Fatalf("a failed extraction must omit the semantic result, never report a partial one")
	}
	if report.CER == 0 {
		t.Fatalf("CER must survive an extraction failure")
	}
}
