// Package audio reads canonical-format WAV assets and replays them as
// paced audio frames, the way a live microphone would feed a realtime
// STT vendor.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"

	"github.com/sttbench/sttbench/pkg/errorsx"
)

// Format is the PCM layout read from a WAV container header.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	PCM        bool
	Duration   time.Duration
}

// Inspect reads a WAV file's header and returns its format metadata
// without touching the PCM payload.
func Inspect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return Format{}, errorsx.Wrap(
			fmt.Errorf("%s: not a valid WAV file", filepath.Base(path)),
			errorsx.ReasonFormat,
		)
	}

	dur, err := d.Duration()
	if err != nil {
		dur = 0
	}
	return Format{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		PCM:        d.WavAudioFormat == 1,
		Duration:   dur,
	}, nil
}

// Validate checks the format against the canonical layout. There is no
// implicit resampling: a mismatch fails the asset.
func (f Format) Validate(sampleRate, channels, bitDepth int) error {
	switch {
	case !f.PCM:
		return errorsx.Wrap(
			fmt.Errorf("compressed WAV not supported"),
			errorsx.ReasonFormat,
		)
	case f.SampleRate != sampleRate:
		return errorsx.Wrap(
			fmt.Errorf("sample_rate=%d expected=%d", f.SampleRate, sampleRate),
			errorsx.ReasonFormat,
		)
	case f.Channels != channels:
		return errorsx.Wrap(
			fmt.Errorf("channels=%d expected=%d", f.Channels, channels),
			errorsx.ReasonFormat,
		)
	case f.BitDepth != bitDepth:
		return errorsx.Wrap(
			fmt.Errorf("bit_depth=%d expected=%d", f.BitDepth, bitDepth),
			errorsx.ReasonFormat,
		)
	}
	return nil
}
