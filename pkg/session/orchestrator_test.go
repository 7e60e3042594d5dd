package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
)

// fakeSession is a scripted vendor: events can be attached to a given
// frame index or to the end-of-audio signal, and failure points can be
// injected at any step of the lifecycle.
type fakeSession struct {
	mu           sync.Mutex
	events       chan frames.TranscriptEvent
	eventsClosed bool
	closed       bool
	closeCalls   int
	sent         int

	openErr    error
	sendErrAt  int // frame index whose SendAudio fails, -1 disables
	closeAfter int // vendor ends the stream after this many frames, -1 disables
	hangOnEnd  bool

	duringSend map[int][]frames.TranscriptEvent
	onEnd      []frames.TranscriptEvent
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events:     make(chan frames.TranscriptEvent, 32),
		sendErrAt:  -1,
		closeAfter: -1,
		duringSend: map[int][]frames.TranscriptEvent{},
	}
}

func (s *fakeSession) Name() string { return "fake" }

func (s *fakeSession) Open(ctx context.Context) error { return s.openErr }

func (s *fakeSession) SendAudio(frame frames.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.eventsClosed {
		return fmt.Errorf("connection gone")
	}
	if frame.Index() == s.sendErrAt {
		return fmt.Errorf("write: broken pipe")
	}
	s.sent++
	for _, ev := range s.duringSend[frame.Index()] {
		s.events <- ev
	}
	if s.closeAfter >= 0 && s.sent >= s.closeAfter {
		s.closeEventsLocked()
	}
	return nil
}

func (s *fakeSession) EndAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("connection gone")
	}
	for _, ev := range s.onEnd {
		s.events <- ev
	}
	if !s.hangOnEnd {
		s.closeEventsLocked()
	}
	return nil
}

func (s *fakeSession) Events() <-chan frames.TranscriptEvent { return s.events }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	s.closed = true
	s.closeEventsLocked()
	return nil
}

func (s *fakeSession) closeEventsLocked() {
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}

func feedFrames(n int) <-chan frames.AudioFrame {
	out := make(chan frames.AudioFrame, n)
	for i := 0; i < n; i++ {
		out <- frames.NewAudioFrame(i, make([]byte, 64), 16000, 1)
	}
	close(out)
	return out
}

func TestRunCollectsOrderedFinals(t *testing.T) {
	sess := newFakeSession()
	sess.duringSend[1] = []frames.TranscriptEvent{
		frames.NewPartialEvent("Potom"),
		frames.NewFinalEvent("Potom jsem "),
	}
	sess.onEnd = []frames.TranscriptEvent{
		frames.NewPartialEvent("dostal"),
		frames.NewFinalEvent("dostal cenu. "),
	}

	o := NewOrchestrator(OrchestratorConfig{FragmentPolicy: FragmentDrop}, nil)
	res, err := o.Run(context.Background(), sess, feedFrames(3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Transcript != "Potom jsem dostal cenu." {
		t.Fatalf("transcript = %q", res.Transcript)
	}
	if res.FramesSent != 3 {
		t.Fatalf("frames sent = %d", res.FramesSent)
	}
	if res.Incomplete {
		t.Fatalf("clean run must not be incomplete")
	}
	if res.SessionID == "" || res.Provider != "fake" {
		t.Fatalf("result identity not populated: %+v", res)
	}
	if sess.closeCalls == 0 {
		t.Fatalf("session must be closed on the success path")
	}
}

func TestRunPreservesPartialResultOnSendFailure(t *testing.T) {
	sess := newFakeSession()
	sess.duringSend[0] = []frames.TranscriptEvent{frames.NewFinalEvent("Potom jsem")}
	sess.sendErrAt = 2

	o := NewOrchestrator(OrchestratorConfig{FragmentPolicy: FragmentDrop}, nil)
	res, err := o.Run(context.Background(), sess, feedFrames(5))
	if err == nil {
		t.Fatalf("expected send failure")
	}
	if !errorsx.HasReason(err, errorsx.ReasonSend) {
		t.Fatalf("expected stt_send reason, got %v", err)
	}
	if !res.Incomplete {
		t.Fatalf("failed run must be marked incomplete")
	}
	if len(res.Fragments) != 1 || res.Transcript != "Potom jsem" {
		t.Fatalf("fragments committed before the failure must survive, got %+v", res)
	}
	if sess.closeCalls == 0 {
		t.Fatalf("session must be closed on the failure path")
	}
}

func TestRunFinalizeTimeout(t *testing.T) {
	sess := newFakeSession()
	sess.hangOnEnd = true
	sess.onEnd = []frames.TranscriptEvent{frames.NewFinalEvent("Potom jsem")}

	o := NewOrchestrator(OrchestratorConfig{
		FinalizeTimeout: 50 * time.Millisecond,
		FragmentPolicy:  FragmentDrop,
	}, nil)
	start := time.Now()
	res, err := o.Run(context.Background(), sess, feedFrames(2))
	if !errorsx.HasReason(err, errorsx.ReasonFinalizeTimeout) {
		t.Fatalf("expected finalize_timeout reason, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout did not fire promptly")
	}
	if !res.Incomplete || res.Transcript != "Potom jsem" {
		t.Fatalf("fragments before the timeout must survive, got %+v", res)
	}
	if sess.closeCalls == 0 {
		t.Fatalf("hung session must be force-closed")
	}
}

func TestRunVendorEndsStreamEarly(t *testing.T) {
	sess := newFakeSession()
	sess.duringSend[0] = []frames.TranscriptEvent{frames.NewFinalEvent("Potom jsem dostal cenu.")}
	sess.closeAfter = 2

	o := NewOrchestrator(OrchestratorConfig{FragmentPolicy: FragmentDrop}, nil)
	res, err := o.Run(context.Background(), sess, feedFrames(10))
	if err != nil {
		t.Fatalf("early vendor end of stream is not a failure: %v", err)
	}
	if res.Transcript != "Potom jsem dostal cenu." {
		t.Fatalf("transcript = %q", res.Transcript)
	}
	if res.Incomplete {
		t.Fatalf("clean early end must not be incomplete")
	}
}

func TestRunOpenFailure(t *testing.T) {
	sess := newFakeSession()
	sess.openErr = errorsx.Wrap(fmt.Errorf("dial tcp: refused"), errorsx.ReasonConnect)

	o := NewOrchestrator(OrchestratorConfig{}, nil)
	res, err := o.Run(context.Background(), sess, feedFrames(1))
	if !errorsx.HasReason(err, errorsx.ReasonConnect) {
		t.Fatalf("expected stt_connect reason, got %v", err)
	}
	if !res.Incomplete || res.FramesSent != 0 {
		t.Fatalf("open failure result: %+v", res)
	}
}
