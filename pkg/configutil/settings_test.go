package configutil

import (
	"testing"
	"time"
)

func TestDecodeSettingsKeyNormalization(t *testing.T) {
	out := struct {
		SampleRate int
		MinVolume  float64
		Model      string
	}{}
	in := map[string]any{
		"sample_rate": "16000",
		"min-volume":  0.15,
		"Model":       "ink-whisper",
	}
	if err := DecodeSettings(in, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SampleRate != 16000 || out.MinVolume != 0.15 || out.Model != "ink-whisper" {
		t.Fatalf("decoded = %+v", out)
	}
}

func TestDecodeSettingsEmptyIsNoop(t *testing.T) {
	out := struct{ Model string }{Model: "keep"}
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Model != "keep" {
		t.Fatalf("empty input must not touch the struct: %+v", out)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("assets", "assets_dir"); err != nil {
		t.Fatalf("present value must pass: %v", err)
	}
	if err := RequireString("  ", "assets_dir"); err == nil {
		t.Fatalf("blank value must fail")
	}
}

func TestMillisDuration(t *testing.T) {
	if d := MillisDuration(200, 0); d != 200*time.Millisecond {
		t.Fatalf("duration = %v", d)
	}
	if d := MillisDuration(0, time.Second); d != time.Second {
		t.Fatalf("fallback = %v", d)
	}
}
