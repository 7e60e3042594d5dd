// Package mock is a scripted in-process vendor for dry runs and tests.
// It emits configured transcript fragments at configurable points of
// the session without any network traffic.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/session"
)

type Config struct {
	// Fragments are the committed transcript pieces to emit, in order.
	Fragments []string

	// FramesPerFragment spaces the fragments out over the incoming
	// audio: one fragment is committed every N frames. Fragments left
	// over when the audio ends are flushed on EndAudio. 0 means all
	// fragments flush on EndAudio.
	FramesPerFragment int

	// EmitPartials precedes every committed fragment with a partial.
	EmitPartials bool

	// Latency delays each emission, roughly imitating a vendor round
	// trip.
	Latency time.Duration

	// OpenErr makes Open fail.
	OpenErr error

	// FailAfterFrames makes SendAudio fail once that many frames have
	// been accepted. 0 disables.
	FailAfterFrames int
}

// DefaultConfig is a healthy one-sentence session.
func DefaultConfig() Config {
	return Config{Fragments: []string{"mock transcript"}}
}

type Session struct {
	cfg Config

	mu       sync.Mutex
	state    *session.Tracker
	emitted  int
	received int

	// events is closed only under mu and every send happens under mu,
	// so a close can never overlap a send. done aborts in-flight emits:
	// Close may fire mid-flush from another goroutine.
	events     chan frames.TranscriptEvent
	done       chan struct{}
	doneOnce   sync.Once
	eventsOnce sync.Once
}

func New(cfg Config) *Session {
	return &Session{
		cfg:    cfg,
		state:  session.NewTracker(),
		events: make(chan frames.TranscriptEvent, 64),
		done:   make(chan struct{}),
	}
}

func (s *Session) Name() string { return "mock" }

func (s *Session) Open(ctx context.Context) error {
	if s.cfg.OpenErr != nil {
		return errorsx.Wrap(s.cfg.OpenErr, errorsx.ReasonConnect)
	}
	return s.state.Transition(session.StateConnected)
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if err := s.state.MarkStreaming(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.FailAfterFrames > 0 && s.received >= s.cfg.FailAfterFrames {
		return errorsx.Wrap(fmt.Errorf("scripted send failure at frame %d", frame.Index()), errorsx.ReasonSend)
	}
	s.received++
	if s.cfg.FramesPerFragment > 0 && s.received%s.cfg.FramesPerFragment == 0 {
		s.emitNextLocked()
	}
	return nil
}

func (s *Session) EndAudio() error {
	already, err := s.state.MarkFinalizing()
	if err != nil || already {
		return err
	}
	s.mu.Lock()
	for s.emitted < len(s.cfg.Fragments) {
		if !s.emitNextLocked() {
			break
		}
	}
	s.mu.Unlock()
	s.closeEvents()
	return nil
}

func (s *Session) Events() <-chan frames.TranscriptEvent { return s.events }

func (s *Session) Close() error {
	s.state.MarkClosed()
	s.doneOnce.Do(func() { close(s.done) })
	s.closeEvents()
	return nil
}

// closeEvents waits for mu so it cannot overlap an emit in flight.
func (s *Session) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsOnce.Do(func() { close(s.events) })
}

func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// emitNextLocked emits one fragment, or reports false once the session
// is closing. Callers hold mu, which keeps the events channel open for
// the duration of the send.
func (s *Session) emitNextLocked() bool {
	if s.emitted >= len(s.cfg.Fragments) || s.isDone() {
		return false
	}
	if s.cfg.Latency > 0 {
		t := time.NewTimer(s.cfg.Latency)
		select {
		case <-t.C:
		case <-s.done:
			t.Stop()
			return false
		}
	}
	text := s.cfg.Fragments[s.emitted]
	if s.cfg.EmitPartials {
		if !s.emitLocked(frames.NewPartialEvent(text)) {
			return false
		}
	}
	if !s.emitLocked(frames.NewFinalEvent(text)) {
		return false
	}
	s.emitted++
	return true
}

func (s *Session) emitLocked(ev frames.TranscriptEvent) bool {
	if s.isDone() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

var _ session.RealtimeSession = (*Session)(nil)
