// Package config loads the benchmark configuration: audio format,
// pacing, session timeouts, the provider roster and scoring options.
// Credentials are never stored in the file; settings values may
// reference environment variables with ${VAR} syntax.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/sttbench/sttbench/pkg/configutil"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	AssetsDir string `mapstructure:"assets_dir"`
	ReportDir string `mapstructure:"report_dir"`

	// Language is the ISO 639-1 code spoken in the assets.
	Language string `mapstructure:"language"`

	// RedactTranscripts masks emails and phone numbers in logged
	// transcripts. Report artifacts keep the raw text.
	RedactTranscripts bool `mapstructure:"redact_transcripts"`

	Audio    AudioConfig             `mapstructure:"audio"`
	Session  SessionConfig           `mapstructure:"session"`
	VAD      VADConfig               `mapstructure:"vad"`
	Vendors  map[string]VendorConfig `mapstructure:"vendors"`
	Semantic SemanticConfig          `mapstructure:"semantic"`
}

type AudioConfig struct {
	SampleRate        int     `mapstructure:"sample_rate"`
	Channels          int     `mapstructure:"channels"`
	BitDepth          int     `mapstructure:"bit_depth"`
	ChunkMS           int     `mapstructure:"chunk_ms"`
	RealtimeFactor    float64 `mapstructure:"realtime_factor"`
	TrailingSilenceMS int     `mapstructure:"trailing_silence_ms"`
}

type SessionConfig struct {
	FinalizeTimeoutMS int `mapstructure:"finalize_timeout_ms"`
	SessionTimeoutMS  int `mapstructure:"session_timeout_ms"`
}

// VADConfig holds the universal voice-activity settings handed to every
// vendor that accepts them.
type VADConfig struct {
	SilenceThresholdS    float64 `mapstructure:"silence_threshold_s"`
	Threshold            float64 `mapstructure:"threshold"`
	MinSilenceDurationMS int     `mapstructure:"min_silence_duration_ms"`
	MinSpeechDurationMS  int     `mapstructure:"min_speech_duration_ms"`
}

// VendorConfig is one provider entry. Settings is a free-form map
// decoded by the provider's own config struct; the API key environment
// variable decides whether the vendor participates at all.
type VendorConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	APIKeyEnv string         `mapstructure:"api_key_env"`
	Settings  map[string]any `mapstructure:"settings"`
}

type SemanticConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("assets_dir", "assets")
	v.SetDefault("report_dir", "tmp")
	v.SetDefault("language", "cs")
	v.SetDefault("redact_transcripts", false)
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.bit_depth", 16)
	v.SetDefault("audio.chunk_ms", 200)
	v.SetDefault("audio.realtime_factor", 1.0)
	v.SetDefault("audio.trailing_silence_ms", 2000)
	v.SetDefault("session.finalize_timeout_ms", 10000)
	v.SetDefault("session.session_timeout_ms", 300000)
	v.SetDefault("vad.silence_threshold_s", 0.7)
	v.SetDefault("vad.threshold", 0.6)
	v.SetDefault("vad.min_silence_duration_ms", 300)
	v.SetDefault("vad.min_speech_duration_ms", 1000)
	v.SetDefault("semantic.enabled", false)
	v.SetDefault("semantic.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("semantic.model", "gpt-4o-mini")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.AssetsDir, "assets_dir"); err != nil {
		return err
	}
	if c.Audio.RealtimeFactor < 0 {
		return fmt.Errorf("audio.realtime_factor must be >= 0")
	}
	if c.Audio.ChunkMS <= 0 {
		return fmt.Errorf("audio.chunk_ms must be positive")
	}
	for name, vendor := range c.Vendors {
		if !vendor.Enabled {
			continue
		}
		if err := configutil.RequireString(vendor.APIKeyEnv, "vendors."+name+".api_key_env"); err != nil {
			return err
		}
	}
	return nil
}

// APIKey reads the vendor's credential from the environment. Empty
// means the vendor is skipped, never failed.
func (v VendorConfig) APIKey() string {
	if v.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(v.APIKeyEnv)
}

func (s SemanticConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

func expandEnvStrings(cfg *Config) {
	cfg.AssetsDir = os.ExpandEnv(cfg.AssetsDir)
	cfg.ReportDir = os.ExpandEnv(cfg.ReportDir)
	for name, vendor := range cfg.Vendors {
		vendor.Settings = expandSettings(vendor.Settings)
		cfg.Vendors[name] = vendor
	}
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
