// Package metrics records benchmark run events: per-session timings
// and per-pair scores, emitted as structured events so a run can be
// audited after the fact.
package metrics

import "time"

// Event names emitted by the benchmark runner.
const (
	EventSessionComplete = "session_complete"
	EventSessionFailed   = "session_failed"
	EventScoreComputed   = "score_computed"
	EventProviderSkipped = "provider_skipped"
)

type Event struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// SessionEvent builds a session lifecycle event tagged with the
// provider and asset.
func SessionEvent(name, provider, asset string, elapsed time.Duration) Event {
	return Event{
		Name:  name,
		Time:  time.Now(),
		Value: elapsed.Seconds(),
		Tags:  map[string]string{"provider": provider, "asset": asset},
	}
}

// ScoreEvent builds a scoring event carrying the error rate.
func ScoreEvent(provider, asset string, cer float64) Event {
	return Event{
		Name:  EventScoreComputed,
		Time:  time.Now(),
		Value: cer,
		Tags:  map[string]string{"provider": provider, "asset": asset},
	}
}

type Observer interface {
	RecordEvent(ev Event)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}
