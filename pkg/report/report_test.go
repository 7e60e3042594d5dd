package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sttbench/sttbench/pkg/bench"
	"github.com/sttbench/sttbench/pkg/score"
	"github.com/sttbench/sttbench/pkg/session"
)

func sampleOutcomes() []bench.Outcome {
	sem := score.NewSemanticResult([]score.Fact{
		{Subject: "speaker", Predicate: "received", Object: "award", Verdict: score.VerdictBoth},
		{Subject: "speaker", Predicate: "thanked", Object: "jury", Verdict: score.VerdictExpectedOnly},
	})
	return []bench.Outcome{
		{
			Provider: "deepgram",
			Asset:    "cs-news-01",
			Scored:   true,
			Report: score.ScoreReport{
				Expected: "Potom jsem dostal cenu.",
				Got:      "Potom jsem dostal cenu",
				CER:      4.166666,
				WER:      25,
				Semantic: &sem,
			},
			Result: session.Result{
				Fragments:  []string{"Potom jsem dostal cenu"},
				FramesSent: 12,
				StartedAt:  time.Unix(100, 0),
				FinishedAt: time.Unix(103, 0),
			},
		},
		{
			Provider: "cartesia",
			Asset:    "cs-news-01",
			Err:      fmt.Errorf("dial tcp: connection refused"),
			Result:   session.Result{Incomplete: true},
		},
		{
			Provider: "speechmatics",
			Asset:    "cs-news-01",
			Scored:   true,
			Report: score.ScoreReport{
				Expected: "Potom jsem dostal cenu.",
				Got:      "Potom jsem dostal vodu",
				CER:      16.7,
				WER:      25,
			},
		},
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTSV(&buf, sampleOutcomes()); err != nil {
		t.Fatalf("write tsv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "provider\tfile\tcer_pct") {
		t.Fatalf("header = %q", lines[0])
	}
	scored := lines[1]
	for _, want := range []string{"deepgram", "cs-news-01", "4.2", "25.0", "50.0", "23\t22"} {
		if !strings.Contains(scored, want) {
			t.Fatalf("scored row missing %q: %q", want, scored)
		}
	}
	failed := lines[2]
	if !strings.Contains(failed, "connection refused") || !strings.Contains(failed, "true") {
		t.Fatalf("failed row must carry error and incomplete flag: %q", failed)
	}
}

func TestWriteTSVSanitizesError(t *testing.T) {
	outcomes := []bench.Outcome{{
		Provider: "x",
		Asset:    "a",
		Err:      fmt.Errorf("line one\nline\ttwo"),
	}}
	var buf bytes.Buffer
	if err := WriteTSV(&buf, outcomes); err != nil {
		t.Fatalf("write tsv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("multi-line error must stay on one row, got %d lines", len(lines))
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, "20260823_120000", sampleOutcomes()); err != nil {
		t.Fatalf("write html: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		"20260823_120000",
		"Potom jsem dostal cenu.",
		"deepgram",
		"connection refused",
		"[expected_only] speaker thanked jury",
		// Missing period only: the loose badge, not a diff panel.
		"match after loose normalization",
		// Word substitution: inline highlighting.
		"<del>cenu</del>",
		"<ins>vodu</ins>",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestDiffWords(t *testing.T) {
	spans := diffWords("potom jsem dostal cenu", "potom jsem dostal vodu")
	if len(spans) != 3 {
		t.Fatalf("spans = %+v", spans)
	}
	if spans[0].Op != opEqual || strings.Join(spans[0].Words, " ") != "potom jsem dostal" {
		t.Fatalf("equal run = %+v", spans[0])
	}
	if spans[1].Op != opDelete || spans[1].Words[0] != "cenu" {
		t.Fatalf("delete run = %+v", spans[1])
	}
	if spans[2].Op != opInsert || spans[2].Words[0] != "vodu" {
		t.Fatalf("insert run = %+v", spans[2])
	}
}

func TestDiffWordsDisjoint(t *testing.T) {
	spans := diffWords("a b", "c")
	if len(spans) != 2 || spans[0].Op != opDelete || spans[1].Op != opInsert {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestRenderDiffEscapes(t *testing.T) {
	out := string(renderDiff("<b>hi</b>", "hello"))
	if strings.Contains(out, "<b>") {
		t.Fatalf("markup must be escaped: %q", out)
	}
}

func TestLooseMatch(t *testing.T) {
	if !LooseMatch("Potom jsem dostal cenu.", "potom jsem dostal cenu") {
		t.Fatalf("punctuation and case must not break a loose match")
	}
	if LooseMatch("Potom jsem dostal cenu.", "Potom jsem") {
		t.Fatalf("different words must not match")
	}
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC))
	if ts != "20260823_120000" {
		t.Fatalf("timestamp = %q", ts)
	}
}
