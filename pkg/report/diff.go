package report

import (
	"html/template"
	"strings"

	"github.com/sttbench/sttbench/pkg/score"
)

type diffOp int

const (
	opEqual diffOp = iota
	opDelete
	opInsert
)

type diffSpan struct {
	Op    diffOp
	Words []string
}

// diffWords aligns two word sequences by longest common subsequence
// and returns the runs of equal, deleted (expected-only) and inserted
// (produced-only) words in reading order.
func diffWords(expected, got string) []diffSpan {
	a := strings.Fields(expected)
	b := strings.Fields(got)
	n, m := len(a), len(b)

	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var spans []diffSpan
	push := func(op diffOp, word string) {
		if k := len(spans); k > 0 && spans[k-1].Op == op {
			spans[k-1].Words = append(spans[k-1].Words, word)
			return
		}
		spans = append(spans, diffSpan{Op: op, Words: []string{word}})
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			push(opEqual, a[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			push(opDelete, a[i])
			i++
		default:
			push(opInsert, b[j])
			j++
		}
	}
	for ; i < n; i++ {
		push(opDelete, a[i])
	}
	for ; j < m; j++ {
		push(opInsert, b[j])
	}
	return spans
}

// renderDiff produces the inline diff markup for the report panel.
// Both transcripts are loose-normalized first so the diff highlights
// word substitutions, not case or punctuation noise.
func renderDiff(expected, got string) template.HTML {
	spans := diffWords(score.NormalizeLoose(expected), score.NormalizeLoose(got))
	var sb strings.Builder
	for k, span := range spans {
		if k > 0 {
			sb.WriteString(" ")
		}
		text := template.HTMLEscapeString(strings.Join(span.Words, " "))
		switch span.Op {
		case opDelete:
			sb.WriteString("<del>" + text + "</del>")
		case opInsert:
			sb.WriteString("<ins>" + text + "</ins>")
		default:
			sb.WriteString(text)
		}
	}
	return template.HTML(sb.String())
}
