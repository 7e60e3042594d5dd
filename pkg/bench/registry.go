// Package bench assembles the benchmark: it builds the provider roster
// from configuration and credentials, runs every provider against every
// asset, and collates the scored outcomes.
package bench

import (
	"log/slog"
	"sort"
	"time"

	"github.com/sttbench/sttbench/pkg/config"
	"github.com/sttbench/sttbench/pkg/configutil"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/metrics"
	"github.com/sttbench/sttbench/pkg/providers/cartesia"
	"github.com/sttbench/sttbench/pkg/providers/deepgram"
	"github.com/sttbench/sttbench/pkg/providers/elevenlabs"
	"github.com/sttbench/sttbench/pkg/providers/mock"
	"github.com/sttbench/sttbench/pkg/providers/speechmatics"
	"github.com/sttbench/sttbench/pkg/session"
)

// ProviderSpec is everything needed to run one provider: a factory
// producing a fresh single-use session per asset, plus the fragment
// policy matching the vendor's flush behavior.
type ProviderSpec struct {
	Name           string
	FragmentPolicy session.FragmentPolicy
	NewSession     func() session.RealtimeSession
}

type specBuilder func(vendor config.VendorConfig, cfg config.Config, key string, logger *slog.Logger) (ProviderSpec, error)

var specBuilders = map[string]specBuilder{
	"deepgram":     buildDeepgram,
	"elevenlabs":   buildElevenLabs,
	"cartesia":     buildCartesia,
	"speechmatics": buildSpeechmatics,
	"mock":         buildMock,
}

// BuildSpecs turns the configured vendor roster into runnable specs.
// A vendor without its credential is skipped with a warning, never
// failed: a benchmark run with three of four keys is still a run.
func BuildSpecs(cfg config.Config, obs metrics.Observer, logger *slog.Logger) []ProviderSpec {
	logger = logging.NewComponentLogger(logger, "registry")
	if obs == nil {
		obs = metrics.NoopObserver{}
	}

	names := make([]string, 0, len(cfg.Vendors))
	for name := range cfg.Vendors {
		names = append(names, name)
	}
	sort.Strings(names)

	var specs []ProviderSpec
	for _, name := range names {
		vendor := cfg.Vendors[name]
		if !vendor.Enabled {
			continue
		}
		build, ok := specBuilders[name]
		if !ok {
			logger.Warn("unknown vendor in config, skipping", slog.String("vendor", name))
			continue
		}
		key := vendor.APIKey()
		if key == "" && name != "mock" {
			logger.Warn("credential not set, skipping vendor",
				slog.String("vendor", name),
				slog.String("env", vendor.APIKeyEnv))
			obs.RecordEvent(metrics.SessionEvent(metrics.EventProviderSkipped, name, "", 0))
			continue
		}
		spec, err := build(vendor, cfg, key, logger)
		if err != nil {
			logger.Warn("vendor settings invalid, skipping",
				slog.String("vendor", name),
				slog.String("error", err.Error()))
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}

func buildDeepgram(vendor config.VendorConfig, cfg config.Config, key string, logger *slog.Logger) (ProviderSpec, error) {
	settings := deepgram.Config{
		APIKey:         key,
		Language:       cfg.Language,
		SampleRate:     cfg.Audio.SampleRate,
		UtteranceEndMS: cfg.VAD.MinSilenceDurationMS,
	}
	if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
		return ProviderSpec{}, err
	}
	return ProviderSpec{
		Name:           "deepgram",
		FragmentPolicy: session.FragmentDrop,
		NewSession: func() session.RealtimeSession {
			return deepgram.New(settings, logger)
		},
	}, nil
}

func buildElevenLabs(vendor config.VendorConfig, cfg config.Config, key string, logger *slog.Logger) (ProviderSpec, error) {
	settings := elevenlabs.Config{
		APIKey:               key,
		Language:             cfg.Language,
		SampleRate:           cfg.Audio.SampleRate,
		VADSilenceThresholdS: cfg.VAD.SilenceThresholdS,
		VADThreshold:         cfg.VAD.Threshold,
		MinSilenceDurationMS: cfg.VAD.MinSilenceDurationMS,
		MinSpeechDurationMS:  cfg.VAD.MinSpeechDurationMS,
	}
	if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
		return ProviderSpec{}, err
	}
	return ProviderSpec{
		Name:           "elevenlabs",
		FragmentPolicy: session.FragmentDrop,
		NewSession: func() session.RealtimeSession {
			return elevenlabs.New(settings, logger)
		},
	}, nil
}

func buildCartesia(vendor config.VendorConfig, cfg config.Config, key string, logger *slog.Logger) (ProviderSpec, error) {
	settings := cartesia.Config{
		APIKey:              key,
		Language:            cfg.Language,
		SampleRate:          cfg.Audio.SampleRate,
		MinVolume:           cfg.VAD.Threshold,
		MaxSilenceDurationS: cfg.VAD.SilenceThresholdS,
	}
	if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
		return ProviderSpec{}, err
	}
	return ProviderSpec{
		Name:           "cartesia",
		FragmentPolicy: session.FragmentDrop,
		NewSession: func() session.RealtimeSession {
			return cartesia.New(settings, logger)
		},
	}, nil
}

func buildSpeechmatics(vendor config.VendorConfig, cfg config.Config, key string, logger *slog.Logger) (ProviderSpec, error) {
	settings := speechmatics.Config{
		APIKey:                 key,
		Language:               cfg.Language,
		SampleRate:             cfg.Audio.SampleRate,
		MaxDelayS:              cfg.VAD.SilenceThresholdS,
		EndOfUtteranceSilenceS: cfg.VAD.SilenceThresholdS,
	}
	if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
		return ProviderSpec{}, err
	}
	// Speechmatics flushes punctuation as separate committed fragments;
	// they are glued to the preceding fragment instead of dropped.
	return ProviderSpec{
		Name:           "speechmatics",
		FragmentPolicy: session.FragmentMerge,
		NewSession: func() session.RealtimeSession {
			return speechmatics.New(settings, logger)
		},
	}, nil
}

func buildMock(vendor config.VendorConfig, cfg config.Config, key string, logger *slog.Logger) (ProviderSpec, error) {
	settings := struct {
		Fragments []string
		LatencyMS int
	}{}
	if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
		return ProviderSpec{}, err
	}
	return ProviderSpec{
		Name:           "mock",
		FragmentPolicy: session.FragmentDrop,
		NewSession: func() session.RealtimeSession {
			mcfg := mock.DefaultConfig()
			if len(settings.Fragments) > 0 {
				mcfg.Fragments = settings.Fragments
			}
			mcfg.Latency = time.Duration(settings.LatencyMS) * time.Millisecond
			return mock.New(mcfg)
		},
	}, nil
}
