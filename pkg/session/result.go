package session

import "time"

// Result is the outcome of one benchmark session against one vendor.
// Fragments and Transcript are populated even when the session failed
// partway, so partial output is never lost; Incomplete marks such runs.
type Result struct {
	SessionID  string
	Provider   string
	Fragments  []string
	Transcript string
	StartedAt  time.Time
	FinishedAt time.Time
	FramesSent int
	Incomplete bool
}

// Elapsed is the wall-clock duration of the session.
func (r Result) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
