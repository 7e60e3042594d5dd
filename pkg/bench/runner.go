package bench

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sttbench/sttbench/pkg/assets"
	"github.com/sttbench/sttbench/pkg/audio"
	"github.com/sttbench/sttbench/pkg/config"
	"github.com/sttbench/sttbench/pkg/configutil"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/metrics"
	"github.com/sttbench/sttbench/pkg/redact"
	"github.com/sttbench/sttbench/pkg/score"
	"github.com/sttbench/sttbench/pkg/session"
)

// sourceBuffer bounds the channel between pacer and producer. Small on
// purpose: the pacer must feel backpressure instead of buffering the
// whole file.
const sourceBuffer = 32

// Outcome is one (provider, asset) cell of the benchmark matrix.
type Outcome struct {
	Provider string
	Asset    string
	Result   session.Result
	Report   score.ScoreReport
	Scored   bool
	Err      error
}

// Runner drives all providers in parallel; within one provider, assets
// run sequentially because streaming is paced in real time. One
// provider failing never affects the others.
type Runner struct {
	cfg      config.Config
	pacer    *audio.Pacer
	scorer   *score.Scorer
	language string
	obs      metrics.Observer
	logger   *slog.Logger
}

func NewRunner(cfg config.Config, scorer *score.Scorer, obs metrics.Observer, logger *slog.Logger) (*Runner, error) {
	pacer, err := audio.NewPacer(audio.PacerConfig{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		BitDepth:        cfg.Audio.BitDepth,
		ChunkDuration:   configutil.MillisDuration(cfg.Audio.ChunkMS, 0),
		RealtimeFactor:  cfg.Audio.RealtimeFactor,
		TrailingSilence: configutil.MillisDuration(cfg.Audio.TrailingSilenceMS, 0),
	}, logger)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Runner{
		cfg:      cfg,
		pacer:    pacer,
		scorer:   scorer,
		language: cfg.Language,
		obs:      obs,
		logger:   logging.NewComponentLogger(logger, "runner"),
	}, nil
}

// Run executes the full provider x asset matrix and returns the
// outcomes sorted by provider, then asset.
func (r *Runner) Run(ctx context.Context, specs []ProviderSpec, pairs []assets.Pair) []Outcome {
	var (
		mu  sync.Mutex
		all []Outcome
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			for _, pair := range pairs {
				outcome := r.runOne(gctx, spec, pair)
				mu.Lock()
				all = append(all, outcome)
				mu.Unlock()
				if gctx.Err() != nil {
					return gctx.Err()
				}
			}
			return nil
		})
	}
	// Provider errors are captured per outcome; the group only
	// propagates cancellation.
	_ = g.Wait()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Provider != all[j].Provider {
			return all[i].Provider < all[j].Provider
		}
		return all[i].Asset < all[j].Asset
	})
	return all
}

func (r *Runner) runOne(ctx context.Context, spec ProviderSpec, pair assets.Pair) Outcome {
	outcome := Outcome{Provider: spec.Name, Asset: pair.Name()}
	logger := r.logger.With(
		slog.String("provider", spec.Name),
		slog.String("asset", pair.Name()))

	expected, err := pair.ExpectedText()
	if err != nil {
		outcome.Err = err
		return outcome
	}

	logger.Info("processing asset")

	pacerCtx, cancelPacer := context.WithCancel(ctx)
	defer cancelPacer()
	source := make(chan frames.AudioFrame, sourceBuffer)
	pacerErr := make(chan error, 1)
	go func() {
		_, err := r.pacer.Stream(pacerCtx, pair.WAV, source)
		pacerErr <- err
	}()

	orch := session.NewOrchestrator(session.OrchestratorConfig{
		FinalizeTimeout: configutil.MillisDuration(r.cfg.Session.FinalizeTimeoutMS, 0),
		SessionTimeout:  configutil.MillisDuration(r.cfg.Session.SessionTimeoutMS, 0),
		FragmentPolicy:  spec.FragmentPolicy,
	}, r.logger)

	result, runErr := orch.Run(ctx, spec.NewSession(), source)
	cancelPacer()
	if perr := <-pacerErr; perr != nil && runErr == nil && !errors.Is(perr, context.Canceled) {
		runErr = perr
	}

	outcome.Result = result
	outcome.Err = runErr

	logger.Debug("final transcript",
		slog.String("text", redact.Transcript(result.Transcript)),
		slog.Int("fragments", len(result.Fragments)))

	if runErr != nil {
		r.obs.RecordEvent(metrics.SessionEvent(metrics.EventSessionFailed, spec.Name, pair.Name(), result.Elapsed()))
		logger.Warn("session failed", slog.String("error", runErr.Error()))
	} else {
		r.obs.RecordEvent(metrics.SessionEvent(metrics.EventSessionComplete, spec.Name, pair.Name(), result.Elapsed()))
	}

	// Score whatever transcript exists. A partial transcript from a
	// failed session still carries signal.
	if runErr == nil || result.Transcript != "" {
		report, serr := r.scorer.Score(ctx, expected, result.Transcript, r.language)
		if serr != nil {
			logger.Warn("semantic scoring unavailable", slog.String("error", serr.Error()))
		}
		outcome.Report = report
		outcome.Scored = true
		r.obs.RecordEvent(metrics.ScoreEvent(spec.Name, pair.Name(), report.CER))
		logger.Info("asset scored",
			slog.Float64("cer", report.CER),
			slog.Float64("wer", report.WER),
			slog.Bool("incomplete", result.Incomplete))
	}
	return outcome
}
