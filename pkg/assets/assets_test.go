package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverPairsRecursively(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.wav"), "")
	touch(t, filepath.Join(dir, "b.txt"), "text b")
	touch(t, filepath.Join(dir, "sub", "a.wav"), "")
	touch(t, filepath.Join(dir, "sub", "a.txt"), "text a")
	touch(t, filepath.Join(dir, "notes.md"), "ignored")

	pairs, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Name() != "b" || pairs[1].Name() != "a" {
		// Sorted by full path: b.wav sorts before sub/a.wav.
		t.Fatalf("unexpected order: %s, %s", pairs[0].Name(), pairs[1].Name())
	}
}

func TestDiscoverMissingTranscriptFails(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "orphan.wav"), "")

	if _, err := Discover(dir); err == nil || !strings.Contains(err.Error(), "orphan.wav") {
		t.Fatalf("orphan wav must fail discovery, got %v", err)
	}
}

func TestDiscoverMissingDirFails(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("missing directory must fail")
	}
}

func TestExpectedTextTrimmed(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.wav"), "")
	touch(t, filepath.Join(dir, "a.txt"), "  Potom jsem dostal cenu.\n")

	pairs, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	text, err := pairs[0].ExpectedText()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "Potom jsem dostal cenu." {
		t.Fatalf("expected text = %q", text)
	}
}
