// Package report renders benchmark outcomes: a machine-readable TSV
// for collation across runs and a self-contained HTML page for eyes.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sttbench/sttbench/pkg/bench"
)

// Timestamp is the run identifier embedded in artifact names.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

var tsvHeader = []string{
	"provider", "file",
	"cer_pct", "wer_pct", "ser_pct", "understanding_pct", "extra_pct",
	"chars_expected", "chars_got",
	"fragments", "frames_sent", "elapsed_s",
	"incomplete", "error",
}

// WriteTSV writes one row per (provider, asset) outcome. Failed runs
// keep their row with the error in the last column so a run's gaps are
// visible in the artifact, not just in the logs.
func WriteTSV(w io.Writer, outcomes []bench.Outcome) error {
	rows := make([]string, 0, len(outcomes)+1)
	rows = append(rows, strings.Join(tsvHeader, "\t"))
	for _, o := range outcomes {
		rows = append(rows, strings.Join(tsvRow(o), "\t"))
	}
	_, err := io.WriteString(w, strings.Join(rows, "\n")+"\n")
	return err
}

// SaveTSV writes the TSV artifact into dir and returns its path.
func SaveTSV(dir, ts string, outcomes []bench.Outcome) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ts+"_benchmark.tsv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteTSV(f, outcomes); err != nil {
		return "", err
	}
	return path, nil
}

func tsvRow(o bench.Outcome) []string {
	row := []string{o.Provider, o.Asset}
	if o.Scored {
		row = append(row,
			formatPct(o.Report.CER),
			formatPct(o.Report.WER),
		)
		if o.Report.Semantic != nil {
			row = append(row,
				formatPct(o.Report.Semantic.SER),
				formatPct(o.Report.Semantic.Understanding),
				formatPct(o.Report.Semantic.PctExtra),
			)
		} else {
			row = append(row, "", "", "")
		}
		row = append(row,
			strconv.Itoa(utf8.RuneCountInString(o.Report.Expected)),
			strconv.Itoa(utf8.RuneCountInString(o.Report.Got)),
		)
	} else {
		row = append(row, "", "", "", "", "", "", "")
	}
	row = append(row,
		strconv.Itoa(len(o.Result.Fragments)),
		strconv.Itoa(o.Result.FramesSent),
		fmt.Sprintf("%.1f", o.Result.Elapsed().Seconds()),
		strconv.FormatBool(o.Result.Incomplete),
	)
	if o.Err != nil {
		row = append(row, sanitize(o.Err.Error()))
	} else {
		row = append(row, "")
	}
	return row
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// sanitize keeps error text on one TSV cell.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
