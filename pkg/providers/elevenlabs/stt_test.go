package elevenlabs

import (
	"strings"
	"testing"
)

func TestParseCommittedTranscript(t *testing.T) {
	ev, ok, err := parseServerMessage([]byte(`{"message_type":"committed_transcript","text":"Potom jsem dostal cenu."}`))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !ev.Final() || ev.Text() != "Potom jsem dostal cenu." {
		t.Fatalf("event: final=%v text=%q", ev.Final(), ev.Text())
	}
}

func TestParseCommittedTranscriptWithTimestamps(t *testing.T) {
	ev, ok, err := parseServerMessage([]byte(`{"message_type":"committed_transcript_with_timestamps","text":"dostal cenu."}`))
	if err != nil || !ok || !ev.Final() {
		t.Fatalf("timestamped commits must count as finals: ok=%v err=%v final=%v", ok, err, ev.Final())
	}
}

func TestParsePartialTranscript(t *testing.T) {
	ev, ok, err := parseServerMessage([]byte(`{"message_type":"partial_transcript","text":"Potom"}`))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if ev.Final() {
		t.Fatalf("partials must never be final")
	}
}

func TestParseSessionStartedIgnored(t *testing.T) {
	_, ok, err := parseServerMessage([]byte(`{"message_type":"session_started"}`))
	if err != nil || ok {
		t.Fatalf("handshake messages carry no transcript: ok=%v err=%v", ok, err)
	}
}

func TestParseErrorTypes(t *testing.T) {
	for _, typ := range []string{"scribeError", "scribeAuthError", "scribeQuotaExceededError", "queue_overflow"} {
		_, ok, err := parseServerMessage([]byte(`{"message_type":"` + typ + `","message":"boom"}`))
		if ok || err == nil {
			t.Fatalf("%s must be terminal: ok=%v err=%v", typ, ok, err)
		}
		if !strings.Contains(err.Error(), typ) {
			t.Fatalf("error should name the type, got %v", err)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	if _, ok, err := parseServerMessage([]byte("not json")); ok || err == nil {
		t.Fatalf("malformed message: ok=%v err=%v", ok, err)
	}
}

func TestEndpointCarriesFormatAndLanguage(t *testing.T) {
	s := New(Config{APIKey: "k", Language: "cs", SampleRate: 16000}, nil)
	url := s.endpoint()
	for _, want := range []string{"model_id=scribe_v2_realtime", "audio_format=pcm_16000", "language_code=cs", "commit_strategy=vad"} {
		if !strings.Contains(url, want) {
			t.Fatalf("endpoint %q missing %q", url, want)
		}
	}
}
