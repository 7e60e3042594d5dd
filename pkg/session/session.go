// Package session defines the contract every realtime STT vendor
// implements and the orchestrator that drives one benchmark session:
// paced audio in, ordered committed transcript fragments out.
package session

import (
	"context"

	"github.com/sttbench/sttbench/pkg/frames"
)

// RealtimeSession is one live streaming connection to an STT vendor.
// Implementations differ only in handshake, wire encoding of audio and
// parsing of vendor messages into TranscriptEvents; lifecycle and
// ordering semantics are identical across vendors.
//
// Lifecycle: Unopened → Connected (Open) → Streaming (first SendAudio)
// → Finalizing (EndAudio) → Closed (vendor end-of-stream or Close).
// Every implementation converges to Closed on all paths, including
// network failure.
type RealtimeSession interface {
	// Name returns the vendor name for logging and registry lookup.
	Name() string

	// Open establishes the connection and performs the handshake.
	Open(ctx context.Context) error

	// SendAudio transmits one frame. Frames must arrive in the order the
	// pacer produced them. Fails once the session is finalizing, closed
	// or the connection has dropped.
	SendAudio(frame frames.AudioFrame) error

	// EndAudio signals that no more audio will be sent so the vendor can
	// flush and finalize the pending utterance. Idempotent.
	EndAudio() error

	// Events is the ordered, finite stream of transcript events for the
	// session's lifetime. The channel is closed when the vendor ends the
	// stream or the session is closed.
	Events() <-chan frames.TranscriptEvent

	// Close terminates the connection and releases all resources.
	// Safe to call from any state, any number of times.
	Close() error
}
