// Package frames defines the immutable value types flowing through a
// benchmark session: paced audio frames going to a vendor and transcript
// events coming back.
package frames

import "time"

// AudioFrame is one fixed-duration slice of raw PCM audio
// (16-bit signed little-endian, interleaved if channels > 1).
// Produced once by the pacer, consumed exactly once by a session.
type AudioFrame struct {
	index   int
	data    []byte
	rate    int
	ch      int
	silence bool
}

// NewAudioFrame wraps a chunk of real audio read from an asset.
func NewAudioFrame(index int, data []byte, rate, ch int) AudioFrame {
	return AudioFrame{index: index, data: data, rate: rate, ch: ch}
}

// NewSilenceFrame creates a zeroed PCM frame of the given sample count.
// Trailing silence lets vendor VAD finalize the last utterance.
func NewSilenceFrame(index, samples, rate, ch int) AudioFrame {
	return AudioFrame{
		index:   index,
		data:    make([]byte, samples*ch*2),
		rate:    rate,
		ch:      ch,
		silence: true,
	}
}

// Index is the frame's position in the paced sequence, starting at 0
// and strictly increasing across real and silence frames.
func (f AudioFrame) Index() int { return f.index }

// Data returns a defensive copy of the PCM payload.
func (f AudioFrame) Data() []byte { return append([]byte(nil), f.data...) }

// RawPayload returns the underlying buffer without copying. Callers must
// not mutate it.
func (f AudioFrame) RawPayload() []byte { return f.data }

func (f AudioFrame) Rate() int     { return f.rate }
func (f AudioFrame) Channels() int { return f.ch }
func (f AudioFrame) Silence() bool { return f.silence }

// Duration is the frame's play time at its sample rate.
func (f AudioFrame) Duration() time.Duration {
	if f.rate <= 0 || f.ch <= 0 {
		return 0
	}
	samples := len(f.data) / (2 * f.ch)
	return time.Duration(samples) * time.Second / time.Duration(f.rate)
}

// TranscriptEvent is a single transcript fragment from a vendor.
// Final events carry text the vendor has committed and will never
// revise; partial events are informational only and must never be
// concatenated into a result.
type TranscriptEvent struct {
	text  string
	final bool
}

// NewFinalEvent wraps a committed transcript fragment.
func NewFinalEvent(text string) TranscriptEvent {
	return TranscriptEvent{text: text, final: true}
}

// NewPartialEvent wraps a tentative transcript fragment.
func NewPartialEvent(text string) TranscriptEvent {
	return TranscriptEvent{text: text}
}

func (e TranscriptEvent) Text() string { return e.text }
func (e TranscriptEvent) Final() bool  { return e.final }
