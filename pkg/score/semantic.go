package score

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/logging"
)

// Verdict places one extracted fact relative to the two transcripts.
type Verdict string

const (
	VerdictBoth         Verdict = "both"
	VerdictExpectedOnly Verdict = "expected_only"
	VerdictGotOnly      Verdict = "got_only"
)

// Fact is one (subject, predicate, object) triple extracted from the
// transcript pair, tagged with where it appeared.
type Fact struct {
	Subject   string  `json:"subject"`
	Predicate string  `json:"predicate"`
	Object    string  `json:"object"`
	Verdict   Verdict `json:"verdict"`
}

// FactExtractor is the external reasoning collaborator. Stateless; one
// call per transcript pair. Implementations live outside this package
// so the scoring math stays free of transport concerns.
type FactExtractor interface {
	Extract(ctx context.Context, expected, got, language string) ([]Fact, error)
}

// SemanticResult holds the fact tally and the rates derived from it.
// Extra facts never count against SER; they are additions, not
// omissions, and surface separately as PctExtra.
type SemanticResult struct {
	Facts   []Fact
	Both    int
	Missing int
	Extra   int

	// SER is Missing / (Both + Missing) * 100, 0 when no expected facts.
	SER float64

	// Understanding is 100 - SER.
	Understanding float64

	// PctExtra is Extra / (Both + Extra) * 100, 0 when no produced facts.
	PctExtra float64
}

// NewSemanticResult tallies the verdicts and derives the rates, rounded
// to one decimal place.
func NewSemanticResult(facts []Fact) SemanticResult {
	r := SemanticResult{Facts: facts}
	for _, f := range facts {
		switch f.Verdict {
		case VerdictBoth:
			r.Both++
		case VerdictExpectedOnly:
			r.Missing++
		case VerdictGotOnly:
			r.Extra++
		}
	}
	if r.Both+r.Missing > 0 {
		r.SER = round1(float64(r.Missing) / float64(r.Both+r.Missing) * 100)
	}
	r.Understanding = round1(100 - r.SER)
	if r.Both+r.Extra > 0 {
		r.PctExtra = round1(float64(r.Extra) / float64(r.Both+r.Extra) * 100)
	}
	return r
}

// ScoreReport is the scoring outcome for one (provider, asset) pair.
// Semantic is nil whenever the fact extractor is absent or failed.
type ScoreReport struct {
	Expected string
	Got      string
	CER      float64
	WER      float64
	Semantic *SemanticResult
}

// Scorer computes reports. The extractor is optional; without one the
// reports carry CER and WER only.
type Scorer struct {
	extractor FactExtractor
	logger    *slog.Logger
}

func NewScorer(extractor FactExtractor, logger *slog.Logger) *Scorer {
	return &Scorer{
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "scorer"),
	}
}

// Score computes CER and WER, then the semantic rates when an extractor
// is configured. An extractor failure omits the semantic result rather
// than producing a partial one; the returned error carries the
// scoring_unavailable reason and the report is still valid.
func (s *Scorer) Score(ctx context.Context, expected, got, language string) (ScoreReport, error) {
	report := ScoreReport{
		Expected: Normalize(expected),
		Got:      Normalize(got),
		CER:      CER(expected, got),
		WER:      WER(expected, got),
	}
	if s.extractor == nil {
		return report, nil
	}

	facts, err := s.extractor.Extract(ctx, report.Expected, report.Got, language)
	if err != nil {
		s.logger.Warn("fact extraction unavailable, reporting CER only",
			slog.String("error", err.Error()))
		return report, errorsx.Wrap(
			fmt.Errorf("fact extraction: %w", err),
			errorsx.ReasonScoringUnavailable,
		)
	}
	sem := NewSemanticResult(facts)
	report.Semantic = &sem
	return report, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
