package frames

import (
	"testing"
	"time"
)

func TestSilenceFrameSize(t *testing.T) {
	// 200 ms at 16 kHz mono = 3200 samples = 6400 bytes.
	f := NewSilenceFrame(7, 3200, 16000, 1)
	if len(f.RawPayload()) != 6400 {
		t.Fatalf("expected 6400 bytes, got %d", len(f.RawPayload()))
	}
	if !f.Silence() {
		t.Fatalf("expected silence flag")
	}
	if f.Index() != 7 {
		t.Fatalf("expected index 7, got %d", f.Index())
	}
	for _, b := range f.RawPayload() {
		if b != 0 {
			t.Fatalf("silence frame must be zeroed PCM")
		}
	}
}

func TestAudioFrameDuration(t *testing.T) {
	f := NewAudioFrame(0, make([]byte, 6400), 16000, 1)
	if got := f.Duration(); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms, got %s", got)
	}
}

func TestDataCopyIsDefensive(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	f := NewAudioFrame(0, buf, 16000, 1)
	cp := f.Data()
	cp[0] = 99
	if f.RawPayload()[0] != 1 {
		t.Fatalf("Data() must not alias the frame buffer")
	}
}
