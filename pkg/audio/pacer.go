package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
)

// PacerConfig controls chunking and pacing. Values come from the shared
// universal configuration and are fixed for the pacer's lifetime.
type PacerConfig struct {
	SampleRate int
	Channels   int
	BitDepth   int

	// ChunkDuration is the nominal play time of one frame.
	ChunkDuration time.Duration

	// RealtimeFactor scales the gap between frames:
	// 1.0 = realtime, 0.5 = twice realtime, 0 = no pacing at all.
	RealtimeFactor float64

	// TrailingSilence is appended after the last real frame so vendor
	// VAD finalizes the last utterance instead of leaving it pending.
	TrailingSilence time.Duration
}

func (c PacerConfig) withDefaults() PacerConfig {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.BitDepth == 0 {
		c.BitDepth = 16
	}
	if c.ChunkDuration == 0 {
		c.ChunkDuration = 200 * time.Millisecond
	}
	return c
}

// Pacer replays WAV assets as fixed-duration frames at a real-time-ish
// cadence. Each Stream call re-reads the file, so a single Pacer is
// reusable across assets and runs.
type Pacer struct {
	cfg    PacerConfig
	logger *slog.Logger
}

func NewPacer(cfg PacerConfig, logger *slog.Logger) (*Pacer, error) {
	cfg = cfg.withDefaults()
	if cfg.ChunkDuration < 10*time.Millisecond || cfg.ChunkDuration > 5*time.Second {
		return nil, fmt.Errorf("chunk duration must be between 10ms and 5s, got %s", cfg.ChunkDuration)
	}
	if cfg.RealtimeFactor < 0 {
		return nil, fmt.Errorf("realtime factor must be >= 0, got %f", cfg.RealtimeFactor)
	}
	if cfg.TrailingSilence < 0 {
		return nil, fmt.Errorf("trailing silence must be >= 0, got %s", cfg.TrailingSilence)
	}
	return &Pacer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pacer"),
	}, nil
}

// Stream validates the asset, slices it into frames and emits them on
// out with the configured pacing, then appends the trailing silence
// frames. The out channel is closed when Stream returns; its capacity
// bounds how far the pacer can run ahead of the consumer.
//
// Returns the number of frames emitted (real + silence).
func (p *Pacer) Stream(ctx context.Context, path string, out chan<- frames.AudioFrame) (int, error) {
	defer close(out)

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return 0, errorsx.Wrap(
			fmt.Errorf("%s: not a valid WAV file", filepath.Base(path)),
			errorsx.ReasonFormat,
		)
	}
	format := Format{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		PCM:        d.WavAudioFormat == 1,
	}
	if err := format.Validate(p.cfg.SampleRate, p.cfg.Channels, p.cfg.BitDepth); err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := d.FwdToPCM(); err != nil {
		return 0, errorsx.Wrap(fmt.Errorf("%s: %w", filepath.Base(path), err), errorsx.ReasonFormat)
	}

	samplesPerChunk := int(int64(p.cfg.SampleRate) * int64(p.cfg.ChunkDuration) / int64(time.Second))
	chunkBytes := samplesPerChunk * p.cfg.Channels * 2
	interval := time.Duration(float64(p.cfg.ChunkDuration) * p.cfg.RealtimeFactor)

	p.logger.Debug("streaming asset",
		slog.String("file", filepath.Base(path)),
		slog.Int("samples_per_chunk", samplesPerChunk),
		slog.Duration("interval", interval))

	sent := 0
	for {
		buf := make([]byte, chunkBytes)
		n, err := io.ReadFull(d.PCMChunk, buf)
		if n > 0 {
			if err := p.emit(ctx, out, frames.NewAudioFrame(sent, buf[:n], p.cfg.SampleRate, p.cfg.Channels)); err != nil {
				return sent, err
			}
			sent++
			if sent%20 == 0 {
				p.logger.Debug("streamed chunks", slog.Int("count", sent))
			}
			if err := p.pace(ctx, interval); err != nil {
				return sent, err
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return sent, err
		}
	}

	for i := 0; i < p.SilenceFrameCount(); i++ {
		if err := p.emit(ctx, out, frames.NewSilenceFrame(sent, samplesPerChunk, p.cfg.SampleRate, p.cfg.Channels)); err != nil {
			return sent, err
		}
		sent++
		if err := p.pace(ctx, interval); err != nil {
			return sent, err
		}
	}

	p.logger.Info("asset streamed",
		slog.String("file", filepath.Base(path)),
		slog.Int("frames", sent))
	return sent, nil
}

// SilenceFrameCount is the number of trailing silence frames appended
// after the last real frame.
func (p *Pacer) SilenceFrameCount() int {
	if p.cfg.TrailingSilence <= 0 {
		return 0
	}
	n := int(p.cfg.TrailingSilence / p.cfg.ChunkDuration)
	if p.cfg.TrailingSilence%p.cfg.ChunkDuration != 0 {
		n++
	}
	return n
}

func (p *Pacer) emit(ctx context.Context, out chan<- frames.AudioFrame, f frames.AudioFrame) error {
	select {
	case out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pacer) pace(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTimer(interval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
