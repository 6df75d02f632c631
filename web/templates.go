package web

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"bytes": func(n int64) string {
		if n <= 0 {
			return ""
		}
		return humanize.Bytes(uint64(n))
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"inc": func(i int) int { return i + 1 },
	"ms": func(d time.Duration) string {
		return d.Round(time.Millisecond).String()
	},
}).Parse(`
{{define "head"}}
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>{{.Title}} - arXiv Equation Analyzer</title>
	<style>
		* { box-sizing: border-box; }
		body { font-family: system-ui, sans-serif; margin: 0 auto; padding: 1rem; line-height: 1.5; max-width: 1600px; }
		a { color: #0066cc; }
		.nav { margin-bottom: 1rem; }
		.search-form input[type="text"] { padding: 0.5rem; width: 480px; max-width: 100%; font-size: 1rem; }
		.search-form button { padding: 0.5rem 1rem; font-size: 1rem; cursor: pointer; }
		.paper { border-bottom: 1px solid #eee; padding: 0.5rem 0; }
		.paper-id { font-family: monospace; color: #666; }
		.paper-meta { font-size: 0.9rem; color: #666; }
		.error { background: #f8d7da; color: #721c24; padding: 0.75rem 1rem; border-radius: 4px; margin: 1rem 0; white-space: pre-wrap; }
		.notice { background: #fff3cd; padding: 0.75rem 1rem; border-radius: 4px; margin: 1rem 0; }
		.columns { display: flex; gap: 1rem; align-items: flex-start; }
		.col { flex: 1; min-width: 0; }
		.pdf-frame { width: 100%; height: 85vh; border: 1px solid #ddd; }
		.btn { display: inline-block; padding: 0.4rem 0.8rem; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 0.5rem 0; }
		details { border: 1px solid #ddd; border-radius: 4px; padding: 0.5rem 0.75rem; margin: 0.5rem 0; }
		details details { margin-left: 0.5rem; }
		summary { cursor: pointer; font-weight: 600; overflow-wrap: anywhere; }
		pre { background: #f5f5f5; padding: 0.75rem; overflow-x: auto; white-space: pre-wrap; }
		.plot img { max-width: 100%; }
		.plot-error { color: #856404; }
		.label { font-weight: 600; }
	</style>
</head>
<body>
<div class="nav"><a href="/">Home</a></div>
{{end}}

{{define "foot"}}
</body>
</html>
{{end}}

{{define "form"}}
<form class="search-form" action="/paper" method="get">
	<input type="text" name="q" placeholder="arXiv URL or paper ID (e.g. 2504.02828 or https://arxiv.org/abs/2504.02828)" value="{{.Query}}" autocomplete="off">
	<button type="submit">Analyze</button>
</form>
{{end}}

{{define "index"}}
{{template "head" .}}
<h1>arXiv Equation Analyzer</h1>
{{template "form" .}}
{{if .Error}}<div class="error">{{.Error}}</div>{{end}}
<h2>Recent Papers</h2>
{{range .Papers}}
<div class="paper">
	<span class="paper-id"><a href="/paper?q={{.ID}}">{{.ID}}</a></span>
	{{if .Title}}<div>{{.Title}}</div>{{end}}
	<div class="paper-meta">{{with date .Published}}published {{.}} | {{end}}{{bytes .SizeBytes}} | fetched {{ago .FetchedAt}}</div>
</div>
{{else}}
<p>No papers fetched yet.</p>
{{end}}
{{template "foot" .}}
{{end}}

{{define "error"}}
{{template "head" .}}
<h1>arXiv Equation Analyzer</h1>
{{template "form" .}}
<div class="error">Error processing paper: {{.Error}}</div>
{{template "foot" .}}
{{end}}

{{define "paper"}}
{{template "head" .}}
{{template "form" .}}
<p>Processing paper: <span class="paper-id">{{.Paper.ID}}</span>{{if .Paper.FromCache}} (loaded from cache){{end}}</p>
<div class="columns">
	<div class="col">
		<h2>PDF Viewer</h2>
		{{if .Paper.Title}}<p>{{.Paper.Title}}</p>{{end}}
		<iframe class="pdf-frame" src="{{.PDFURL}}"></iframe>
		<a class="btn" href="{{.DownloadURL}}">Download PDF</a>
	</div>
	<div class="col">
		<h2>Equation Analysis</h2>
		{{if .TextError}}<div class="notice">Text extraction failed: {{.TextError}}</div>{{end}}
		{{if .Equations}}
		<p>Found {{len .Equations}} equations in the paper.</p>
		{{range $i, $eq := .Equations}}
		<details>
			<summary>Equation {{inc $i}}: {{$eq.Equation}}</summary>
			<details>
				<summary>Raw model response</summary>
				<pre>{{$eq.RawResponse}}</pre>
			</details>
			{{if $eq.Error}}<div class="error">{{$eq.Error}}</div>{{end}}
			<p><span class="label">Explanation:</span> {{$eq.Explanation}}</p>
			<p class="label">Parameters:</p>
			<pre>{{$eq.Parameters}}</pre>
			{{if $eq.Code}}<pre><code class="language-python">{{$eq.Code}}</code></pre>{{end}}
			{{if $eq.PlotURL}}
			<div class="plot">{{if $eq.PlotExpression}}<p class="paper-meta">y = {{$eq.PlotExpression}}</p>{{end}}<img src="{{$eq.PlotURL}}" alt="plot of equation {{inc $i}}"></div>
			{{else if $eq.PlotError}}
			<p class="plot-error">Could not plot equation: {{$eq.PlotError}}</p>
			{{end}}
		</details>
		{{end}}
		{{else}}
		<div class="notice">No equations found using standard LaTeX delimiters. Trying alternative analysis{{if eq .FallbackSource "abstract"}} of the abstract page{{end}}...</div>
		{{if .Fallback}}
		<details>
			<summary>Raw model response</summary>
			<pre>{{.Fallback.RawResponse}}</pre>
		</details>
		{{range $i, $e := .Fallback.Entries}}
		<details>
			<summary>Equation {{inc $i}}: {{$e.Equation}}</summary>
			<p><span class="label">Explanation:</span> {{$e.Explanation}}</p>
			{{if $e.Code}}<pre><code class="language-python">{{$e.Code}}</code></pre>{{end}}
		</details>
		{{end}}
		{{end}}
		{{if .FallbackError}}<div class="error">Error analyzing paper: {{.FallbackError}}</div>{{end}}
		{{end}}
		{{if .Runs}}
		<details>
			<summary>Analysis history ({{len .Runs}} runs)</summary>
			<ul>
			{{range .Runs}}
				<li class="paper-meta">{{ago .CreatedAt}}: {{if .Fallback}}paper-level analysis{{else}}{{.EquationCount}} equations, {{.FailureCount}} failed{{end}} in {{ms .Duration}}</li>
			{{end}}
			</ul>
		</details>
		{{end}}
	</div>
</div>
{{template "foot" .}}
{{end}}
`))
