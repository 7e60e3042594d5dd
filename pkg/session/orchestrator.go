package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
)

const (
	defaultFinalizeTimeout = 10 * time.Second
	defaultSessionTimeout  = 5 * time.Minute
)

// OrchestratorConfig tunes the session driver.
type OrchestratorConfig struct {
	// FinalizeTimeout bounds how long to wait for further events after
	// EndAudio. An idle timer, reset by every event.
	FinalizeTimeout time.Duration

	// SessionTimeout bounds the whole session end to end.
	SessionTimeout time.Duration

	// FragmentPolicy governs punctuation-only committed fragments.
	FragmentPolicy FragmentPolicy
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.FinalizeTimeout == 0 {
		c.FinalizeTimeout = defaultFinalizeTimeout
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	return c
}

// Orchestrator drives one vendor session: a producer goroutine pushes
// paced frames into the session while a consumer goroutine drains its
// event stream and accumulates committed fragments. Both sides run
// under one errgroup so a failure on either side tears down the other.
type Orchestrator struct {
	cfg    OrchestratorConfig
	logger *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Run opens the session, streams every frame from source, finalizes and
// collects the ordered committed fragments. The session is closed on
// every return path. On error the Result still carries whatever
// fragments arrived before the failure, marked Incomplete.
func (o *Orchestrator) Run(ctx context.Context, sess RealtimeSession, source <-chan frames.AudioFrame) (Result, error) {
	res := Result{
		SessionID: uuid.NewString(),
		Provider:  sess.Name(),
		StartedAt: time.Now(),
	}
	logger := o.logger.With(
		slog.String("session_id", res.SessionID),
		slog.String("provider", res.Provider))

	ctx, cancel := context.WithTimeout(ctx, o.cfg.SessionTimeout)
	defer cancel()

	if err := sess.Open(ctx); err != nil {
		res.FinishedAt = time.Now()
		res.Incomplete = true
		return res, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("session close", slog.String("error", err.Error()))
		}
	}()
	logger.Info("session opened")

	agg := NewAggregator(o.cfg.FragmentPolicy)
	audioDone := make(chan struct{})
	consumerDone := make(chan struct{})
	var endOfStream atomic.Bool
	framesSent := 0

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(audioDone)
		for frame := range source {
			if err := sess.SendAudio(frame); err != nil {
				// The vendor may have ended the stream cleanly just
				// before this send. Give the consumer a moment to
				// observe that before declaring a failure.
				select {
				case <-consumerDone:
				case <-time.After(o.cfg.FinalizeTimeout):
				case <-gctx.Done():
				}
				if endOfStream.Load() {
					drain(source)
					return nil
				}
				return errorsx.Wrap(
					fmt.Errorf("send frame %d: %w", frame.Index(), err),
					errorsx.ReasonSend,
				)
			}
			framesSent++
		}
		if err := sess.EndAudio(); err != nil {
			logger.Warn("end audio", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		defer close(consumerDone)
		events := sess.Events()
		pending := audioDone
		var idle *time.Timer
		var fired <-chan time.Time
		defer func() {
			if idle != nil {
				idle.Stop()
			}
		}()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					endOfStream.Store(true)
					return nil
				}
				if ev.Final() {
					agg.Add(ev)
					logger.Debug("fragment committed",
						slog.Int("count", agg.Len()),
						slog.String("text", ev.Text()))
				}
				if idle != nil {
					idle.Reset(o.cfg.FinalizeTimeout)
				}
			case <-pending:
				pending = nil
				idle = time.NewTimer(o.cfg.FinalizeTimeout)
				fired = idle.C
			case <-fired:
				// Force-close to unblock the vendor reader; the deferred
				// Close is idempotent.
				_ = sess.Close()
				return errorsx.Wrap(
					fmt.Errorf("no end of stream within %s of end of audio", o.cfg.FinalizeTimeout),
					errorsx.ReasonFinalizeTimeout,
				)
			case <-gctx.Done():
				_ = sess.Close()
				return gctx.Err()
			}
		}
	})

	err := g.Wait()

	res.Fragments = agg.Fragments()
	res.Transcript = agg.Transcript()
	res.FramesSent = framesSent
	res.FinishedAt = time.Now()
	res.Incomplete = err != nil

	if err != nil {
		logger.Warn("session failed",
			slog.Int("frames_sent", framesSent),
			slog.Int("fragments", len(res.Fragments)),
			slog.String("error", err.Error()))
		return res, err
	}
	logger.Info("session complete",
		slog.Int("frames_sent", framesSent),
		slog.Int("fragments", len(res.Fragments)),
		slog.Duration("elapsed", res.Elapsed()))
	return res, nil
}

func drain(source <-chan frames.AudioFrame) {
	for range source {
	}
}
