package report

import (
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/sttbench/sttbench/pkg/bench"
	"github.com/sttbench/sttbench/pkg/score"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>STT benchmark {{.Timestamp}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 24px; color: #222; }
h1 { font-size: 20px; }
table { border-collapse: collapse; margin-bottom: 24px; }
th, td { border: 1px solid #ccc; padding: 4px 10px; font-size: 13px; text-align: right; }
th:first-child, td:first-child, th:nth-child(2), td:nth-child(2) { text-align: left; }
.panel { border: 1px solid #ddd; border-radius: 6px; padding: 12px 16px; margin-bottom: 16px; }
.panel h2 { font-size: 15px; margin: 0 0 8px; }
.transcript { white-space: pre-wrap; background: #f7f7f7; padding: 8px; border-radius: 4px; font-size: 13px; }
.transcript del { background: #fdd; }
.transcript ins { background: #dfd; text-decoration: none; }
.failed { color: #b00020; }
.incomplete { color: #a06000; }
.loose { color: #2a7a2a; font-size: 13px; }
.facts { font-size: 13px; margin-top: 8px; }
</style>
</head>
<body>
<h1>STT benchmark &mdash; {{.Timestamp}}</h1>
<table>
<tr><th>Provider</th><th>File</th><th>CER%</th><th>WER%</th><th>SER%</th><th>Status</th></tr>
{{range .Outcomes}}
<tr>
<td>{{.Provider}}</td><td>{{.Asset}}</td>
{{if .Scored}}<td>{{printf "%.1f" .Report.CER}}</td><td>{{printf "%.1f" .Report.WER}}</td>{{if .Report.Semantic}}<td>{{printf "%.1f" .Report.Semantic.SER}}</td>{{else}}<td>&mdash;</td>{{end}}{{else}}<td>&mdash;</td><td>&mdash;</td><td>&mdash;</td>{{end}}
{{if .Err}}<td class="failed">failed</td>{{else if .Result.Incomplete}}<td class="incomplete">incomplete</td>{{else}}<td>ok</td>{{end}}
</tr>
{{end}}
</table>
{{range .Outcomes}}
<div class="panel">
<h2>{{.Provider}} / {{.Asset}}</h2>
{{if .Err}}<p class="failed">{{.Err}}</p>{{end}}
{{if .Scored}}
<p>Expected:</p><div class="transcript">{{.Report.Expected}}</div>
<p>Got:</p><div class="transcript">{{.Report.Got}}</div>
{{if .Loose}}
<p class="loose">Transcripts match after loose normalization (case and punctuation only).</p>
{{else}}
<p>Diff (loose-normalized):</p><div class="transcript">{{.Diff}}</div>
{{end}}
{{if .Report.Semantic}}
<div class="facts">
<p>Semantic: SER {{printf "%.1f" .Report.Semantic.SER}}%,
understanding {{printf "%.1f" .Report.Semantic.Understanding}}%,
extra {{printf "%.1f" .Report.Semantic.PctExtra}}%
({{.Report.Semantic.Both}} both, {{.Report.Semantic.Missing}} missing, {{.Report.Semantic.Extra}} extra)</p>
<ul>
{{range .Report.Semantic.Facts}}<li>[{{.Verdict}}] {{.Subject}} {{.Predicate}} {{.Object}}</li>
{{end}}
</ul>
</div>
{{end}}
{{end}}
</div>
{{end}}
</body>
</html>
`

var page = template.Must(template.New("report").Parse(pageTemplate))

type pageData struct {
	Timestamp string
	Outcomes  []outcomeView
}

// outcomeView decorates an outcome with the rendered visual diff.
type outcomeView struct {
	bench.Outcome

	// Loose reports the transcripts agree after loose normalization, in
	// which case a badge replaces the diff panel.
	Loose bool
	Diff  template.HTML
}

// WriteHTML renders the self-contained report page.
func WriteHTML(w io.Writer, ts string, outcomes []bench.Outcome) error {
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := outcomeView{Outcome: o}
		if o.Scored {
			v.Loose = LooseMatch(o.Report.Expected, o.Report.Got)
			if !v.Loose {
				v.Diff = renderDiff(o.Report.Expected, o.Report.Got)
			}
		}
		views = append(views, v)
	}
	return page.Execute(w, pageData{Timestamp: ts, Outcomes: views})
}

// SaveHTML writes the HTML artifact into dir and returns its path.
func SaveHTML(dir, ts string, outcomes []bench.Outcome) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ts+"_benchmark.html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteHTML(f, ts, outcomes); err != nil {
		return "", err
	}
	return path, nil
}

// LooseMatch reports whether the transcripts agree after lowercasing
// and punctuation stripping. Shown in summaries as a quick sanity
// signal next to the strict CER.
func LooseMatch(expected, got string) bool {
	return score.NormalizeLoose(expected) == score.NormalizeLoose(got)
}
