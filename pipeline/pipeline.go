// Package pipeline runs one paper through fetch, extraction, analysis and
// plotting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"arxiv-analyzer/analyzer"
	"arxiv-analyzer/arxiv"
	"arxiv-analyzer/equations"
	"arxiv-analyzer/pdftext"
	"arxiv-analyzer/plot"
)

// NoPlotMessage is reported for an analysis that carried no plot expression.
const NoPlotMessage = "model returned no plot expression"

// PaperFetcher resolves user input to a paper.
type PaperFetcher interface {
	Fetch(ctx context.Context, input string) (*arxiv.Paper, error)
}

// EquationAnalyzer explains equations through a language model.
type EquationAnalyzer interface {
	AnalyzeEquations(ctx context.Context, eqs []string) []analyzer.Result
	AnalyzePaper(ctx context.Context, text string) (*analyzer.PaperAnalysis, error)
}

// PlotRenderer draws a plot and returns its file name.
type PlotRenderer interface {
	Render(spec plot.Spec, title string) (string, error)
}

// AbstractSource supplies fallback text when the PDF has none.
type AbstractSource interface {
	Abstract(ctx context.Context, id string) (string, error)
}

// RunRecorder persists run metadata.
type RunRecorder interface {
	RecordRun(run *RunRecord) error
}

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID            string
	PaperID       string
	EquationCount int
	FailureCount  int
	Fallback      bool
	Duration      time.Duration
}

// EquationReport is one analyzed equation and its plot outcome.
type EquationReport struct {
	analyzer.Result
	PlotFile  string
	PlotError string
}

// Report is everything produced for one paper.
type Report struct {
	RunID     string
	Paper     *arxiv.Paper
	Equations []EquationReport

	// Set when no equations were extracted.
	Fallback       *analyzer.PaperAnalysis
	FallbackError  string
	FallbackSource string

	TextError string
	Duration  time.Duration
}

// UsedFallback reports whether the paper-level prompt ran.
func (r *Report) UsedFallback() bool {
	return len(r.Equations) == 0
}

// Failures counts equations whose analysis failed.
func (r *Report) Failures() int {
	n := 0
	for _, eq := range r.Equations {
		if eq.Analysis.Failed() {
			n++
		}
	}
	return n
}

// Runner orchestrates a paper analysis. abstracts and recorder may be nil.
type Runner struct {
	fetcher   PaperFetcher
	analyzer  EquationAnalyzer
	plots     PlotRenderer
	abstracts AbstractSource
	recorder  RunRecorder
	pages     func(data []byte) ([]string, error)
}

// NewRunner creates a Runner with all dependencies.
func NewRunner(fetcher PaperFetcher, an EquationAnalyzer, plots PlotRenderer, abstracts AbstractSource, recorder RunRecorder) *Runner {
	return &Runner{
		fetcher:   fetcher,
		analyzer:  an,
		plots:     plots,
		abstracts: abstracts,
		recorder:  recorder,
		pages:     pdftext.Pages,
	}
}

// Run fetches and analyzes the paper named by input. Only a failure to obtain
// the paper is returned as an error; analysis and plot failures are recorded
// in the report.
func (r *Runner) Run(ctx context.Context, input string) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}

	paper, err := r.fetcher.Fetch(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("fetching paper %q: %w", input, err)
	}
	report.Paper = paper
	slog.Info("analysis starting", "run_id", report.RunID, "paper", paper.ID, "from_cache", paper.FromCache)

	pages, err := r.pages(paper.Content)
	if err != nil {
		slog.Warn("text extraction failed", "paper", paper.ID, "error", err)
		report.TextError = err.Error()
	}

	eqs := equations.ExtractPages(pages)
	slog.Info("equations extracted", "paper", paper.ID, "count", len(eqs))

	if len(eqs) > 0 {
		for _, res := range r.analyzer.AnalyzeEquations(ctx, eqs) {
			report.Equations = append(report.Equations, r.plotResult(res))
		}
	} else {
		r.runFallback(ctx, report, pages)
	}

	report.Duration = time.Since(start)
	r.record(report)

	slog.Info("analysis complete",
		"run_id", report.RunID,
		"paper", paper.ID,
		"equations", len(report.Equations),
		"failures", report.Failures(),
		"fallback", report.UsedFallback(),
		"duration", report.Duration.String(),
	)
	return report, nil
}

func (r *Runner) plotResult(res analyzer.Result) EquationReport {
	rep := EquationReport{Result: res}
	if res.Analysis.Failed() {
		return rep
	}
	spec := res.Analysis.Plot
	if spec == nil {
		rep.PlotError = NoPlotMessage
		return rep
	}

	name, err := r.plots.Render(plot.Spec{
		Expression: spec.Expression,
		Variable:   spec.Variable,
		XMin:       spec.XMin,
		XMax:       spec.XMax,
	}, res.Equation)
	if err != nil {
		slog.Warn("plot failed", "equation", res.Equation, "expression", spec.Expression, "error", err)
		rep.PlotError = err.Error()
		return rep
	}
	rep.PlotFile = name
	return rep
}

func (r *Runner) runFallback(ctx context.Context, report *Report, pages []string) {
	report.FallbackSource = "pdf"
	text, err := pdftext.Join(pages)
	if errors.Is(err, pdftext.ErrNoText) && r.abstracts != nil {
		abs, absErr := r.abstracts.Abstract(ctx, report.Paper.ID)
		if absErr != nil {
			slog.Warn("abstract scrape failed", "paper", report.Paper.ID, "error", absErr)
		} else if strings.TrimSpace(abs) != "" {
			text, err = abs, nil
			report.FallbackSource = "abstract"
		}
	}
	if err != nil {
		report.FallbackError = "no text could be extracted from the paper"
		return
	}

	pa, err := r.analyzer.AnalyzePaper(ctx, text)
	report.Fallback = pa
	if err != nil {
		slog.Warn("paper analysis failed", "paper", report.Paper.ID, "error", err)
		report.FallbackError = err.Error()
	}
}

func (r *Runner) record(report *Report) {
	if r.recorder == nil {
		return
	}
	err := r.recorder.RecordRun(&RunRecord{
		ID:            report.RunID,
		PaperID:       report.Paper.ID,
		EquationCount: len(report.Equations),
		FailureCount:  report.Failures(),
		Fallback:      report.UsedFallback(),
		Duration:      report.Duration,
	})
	if err != nil {
		slog.Error("failed to record run", "run_id", report.RunID, "error", err)
	}
}
