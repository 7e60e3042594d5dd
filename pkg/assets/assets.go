// Package assets discovers benchmark audio assets: WAV files paired
// with a ground-truth transcript of the same basename.
package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pair is one benchmark asset: the audio file and its expected
// transcript.
type Pair struct {
	WAV string
	TXT string
}

// Name is the asset's basename without extension, used as its
// identifier in reports.
func (p Pair) Name() string {
	base := filepath.Base(p.WAV)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExpectedText reads the ground-truth transcript.
func (p Pair) ExpectedText() (string, error) {
	data, err := os.ReadFile(p.TXT)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Discover walks dir recursively and returns every WAV asset sorted by
// path. A WAV without its matching transcript is an error, not a skip:
// an unnoticed missing ground truth would silently shrink the
// benchmark.
func Discover(dir string) ([]Pair, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("assets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets path %s is not a directory", dir)
	}

	var pairs []Pair
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		txt := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
		ti, err := os.Stat(txt)
		if err != nil {
			return fmt.Errorf("missing expected transcript for %s: %w", filepath.Base(path), err)
		}
		if ti.IsDir() {
			return fmt.Errorf("transcript path %s is not a file", txt)
		}
		pairs = append(pairs, Pair{WAV: path, TXT: txt})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].WAV < pairs[j].WAV })
	return pairs, nil
}
