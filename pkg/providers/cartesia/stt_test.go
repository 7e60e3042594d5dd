package cartesia

import (
	"strings"
	"testing"
)

func TestParseFinalTranscript(t *testing.T) {
	ev, ok, done, err := parseServerMessage([]byte(`{"type":"transcript","text":"Potom jsem dostal cenu.","is_final":true}`))
	if err != nil || !ok || done {
		t.Fatalf("ok=%v done=%v err=%v", ok, done, err)
	}
	if !ev.Final() || ev.Text() != "Potom jsem dostal cenu." {
		t.Fatalf("event: final=%v text=%q", ev.Final(), ev.Text())
	}
}

func TestParseInterimTranscript(t *testing.T) {
	ev, ok, _, err := parseServerMessage([]byte(`{"type":"transcript","text":"Potom","is_final":false}`))
	if err != nil || !ok || ev.Final() {
		t.Fatalf("interim transcript: ok=%v final=%v err=%v", ok, ev.Final(), err)
	}
}

func TestParseDone(t *testing.T) {
	_, ok, done, err := parseServerMessage([]byte(`{"type":"done"}`))
	if err != nil || ok || !done {
		t.Fatalf("done acknowledgement: ok=%v done=%v err=%v", ok, done, err)
	}
}

func TestParseFlushDoneIgnored(t *testing.T) {
	_, ok, done, err := parseServerMessage([]byte(`{"type":"flush_done"}`))
	if err != nil || ok || done {
		t.Fatalf("flush_done: ok=%v done=%v err=%v", ok, done, err)
	}
}

func TestParseError(t *testing.T) {
	_, ok, _, err := parseServerMessage([]byte(`{"type":"error","error":"invalid api key"}`))
	if ok || err == nil {
		t.Fatalf("server error: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("error detail lost: %v", err)
	}
}

func TestEndpointCarriesModelAndEncoding(t *testing.T) {
	s := New(Config{APIKey: "k", Language: "cs"}, nil)
	url := s.endpoint()
	for _, want := range []string{"model=ink-whisper", "language=cs", "encoding=pcm_s16le", "sample_rate=16000"} {
		if !strings.Contains(url, want) {
			t.Fatalf("endpoint %q missing %q", url, want)
		}
	}
}
