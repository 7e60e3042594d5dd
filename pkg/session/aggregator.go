package session

import (
	"strings"
	"unicode"

	"github.com/sttbench/sttbench/pkg/frames"
)

// FragmentPolicy decides what happens to committed fragments that carry
// no letters or digits, typically punctuation-only flushes some vendors
// emit when finalizing on silence.
type FragmentPolicy int

const (
	// FragmentKeep appends every non-empty fragment as-is.
	FragmentKeep FragmentPolicy = iota

	// FragmentDrop discards punctuation-only and empty fragments.
	FragmentDrop

	// FragmentMerge glues a punctuation-only fragment onto the previous
	// fragment without a separating space, so "cenu" + "." reads
	// "cenu." instead of "cenu .".
	FragmentMerge
)

func (p FragmentPolicy) String() string {
	switch p {
	case FragmentKeep:
		return "keep"
	case FragmentDrop:
		return "drop"
	case FragmentMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// Aggregator accumulates committed transcript fragments in arrival order
// and joins them into a single transcript. Not safe for concurrent use;
// the orchestrator's consumer goroutine owns it.
type Aggregator struct {
	policy    FragmentPolicy
	fragments []string
}

func NewAggregator(policy FragmentPolicy) *Aggregator {
	return &Aggregator{policy: policy}
}

// Add records one committed fragment, subject to the fragment policy.
// Partial events must be filtered out before this point.
func (a *Aggregator) Add(ev frames.TranscriptEvent) {
	text := strings.TrimSpace(ev.Text())
	if text == "" {
		return
	}
	if hasLetterOrDigit(text) {
		a.fragments = append(a.fragments, text)
		return
	}
	switch a.policy {
	case FragmentKeep:
		a.fragments = append(a.fragments, text)
	case FragmentMerge:
		if n := len(a.fragments); n > 0 {
			a.fragments[n-1] += text
		}
	case FragmentDrop:
	}
}

// Fragments returns the accumulated fragments in arrival order.
func (a *Aggregator) Fragments() []string {
	return append([]string(nil), a.fragments...)
}

// Transcript joins the fragments with single spaces.
func (a *Aggregator) Transcript() string {
	return strings.Join(a.fragments, " ")
}

func (a *Aggregator) Len() int { return len(a.fragments) }

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
