// Package web serves the two-pane paper analysis UI.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"arxiv-analyzer/arxiv"
	"arxiv-analyzer/pipeline"
)

const defaultRecentLimit = 20

var plotName = regexp.MustCompile(`^[0-9a-f]+\.png$`)

// PaperAnalyzer runs the full analysis for user input.
type PaperAnalyzer interface {
	Run(ctx context.Context, input string) (*pipeline.Report, error)
}

// PaperLister lists recently fetched papers.
type PaperLister interface {
	RecentPapers(limit int) ([]PaperSummary, error)
}

// RunHistory lists past analysis runs of a paper, newest first.
type RunHistory interface {
	RunsForPaper(id string) ([]RunSummary, error)
}

// PDFLocator maps a clean paper id to its cached PDF path.
type PDFLocator interface {
	PathFor(id string) string
}

// PaperSummary is a row of the recent papers list.
type PaperSummary struct {
	ID        string
	Title     string
	Published time.Time
	SizeBytes int64
	FetchedAt time.Time
}

// RunSummary is a row of a paper's run history.
type RunSummary struct {
	EquationCount int
	FailureCount  int
	Fallback      bool
	Duration      time.Duration
	CreatedAt     time.Time
}

// Deps holds the dependencies of a Server. Papers and Runs may be nil.
type Deps struct {
	Analyzer    PaperAnalyzer
	Papers      PaperLister
	Runs        RunHistory
	PDFs        PDFLocator
	PlotDir     string
	RecentLimit int
}

// Server handles HTTP requests for the UI.
type Server struct {
	deps Deps
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.RecentLimit <= 0 {
		deps.RecentLimit = defaultRecentLimit
	}
	return &Server{deps: deps}
}

// Handler returns the router for all UI routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/paper", s.handlePaper)
	mux.HandleFunc("/pdf/", s.handlePDF)
	mux.HandleFunc("/plots/", s.handlePlot)
	return logRequests(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := map[string]any{
		"Title": "Home",
		"Query": "",
	}
	if s.deps.Papers != nil {
		papers, err := s.deps.Papers.RecentPapers(s.deps.RecentLimit)
		if err != nil {
			slog.Error("failed to list recent papers", "error", err)
			data["Error"] = "could not load recent papers"
		}
		data["Papers"] = papers
	}
	render(w, http.StatusOK, "index", data)
}

// equationView is the display form of one analyzed equation.
type equationView struct {
	Equation       string
	RawResponse    string
	Explanation    string
	Parameters     string
	Code           string
	Error          string
	PlotURL        string
	PlotExpression string
	PlotError      string
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	report, err := s.deps.Analyzer.Run(r.Context(), query)
	if err != nil {
		slog.Error("paper analysis failed", "query", query, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, arxiv.ErrNotFound) {
			status = http.StatusNotFound
		}
		render(w, status, "error", map[string]any{
			"Title": "Error",
			"Query": query,
			"Error": err.Error(),
		})
		return
	}

	views := make([]equationView, 0, len(report.Equations))
	for _, eq := range report.Equations {
		v := equationView{
			Equation:    eq.Equation,
			RawResponse: eq.RawResponse,
			Explanation: eq.Analysis.Explanation,
			Parameters:  eq.Analysis.ParametersText(),
			Code:        eq.Analysis.PythonCode,
			Error:       eq.Analysis.Error,
			PlotError:   eq.PlotError,
		}
		if eq.PlotFile != "" {
			v.PlotURL = "/plots/" + eq.PlotFile
			if eq.Analysis.Plot != nil {
				v.PlotExpression = eq.Analysis.Plot.Expression
			}
		}
		views = append(views, v)
	}

	var runs []RunSummary
	if s.deps.Runs != nil {
		runs, err = s.deps.Runs.RunsForPaper(report.Paper.ID)
		if err != nil {
			slog.Warn("failed to load run history", "paper", report.Paper.ID, "error", err)
		}
	}

	pdfURL := "/pdf/" + report.Paper.ID
	render(w, http.StatusOK, "paper", map[string]any{
		"Title":          report.Paper.ID,
		"Query":          query,
		"Paper":          report.Paper,
		"PDFURL":         pdfURL,
		"DownloadURL":    pdfURL + "?download=1",
		"Equations":      views,
		"Fallback":       report.Fallback,
		"FallbackError":  report.FallbackError,
		"FallbackSource": report.FallbackSource,
		"TextError":      report.TextError,
		"Runs":           runs,
	})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	id := arxiv.CleanID(strings.TrimPrefix(r.URL.Path, "/pdf/"))
	if id == "" {
		http.NotFound(w, r)
		return
	}

	path := s.deps.PDFs.PathFor(id)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "PDF not cached", http.StatusNotFound)
		return
	}

	disposition := "inline"
	if r.URL.Query().Get("download") != "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, arxiv.CacheFileName(id)))
	http.ServeFile(w, r, path)
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/plots/")
	if !plotName.MatchString(name) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.deps.PlotDir, name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

// render executes a template into a buffer so a failure can still produce a
// clean 500.
func render(w http.ResponseWriter, status int, name string, data map[string]any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}
