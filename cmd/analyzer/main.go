package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"arxiv-analyzer/analyzer"
	"arxiv-analyzer/arxiv"
	"arxiv-analyzer/config"
	"arxiv-analyzer/pipeline"
	"arxiv-analyzer/plot"
	"arxiv-analyzer/scheduler"
	"arxiv-analyzer/scraper"
	"arxiv-analyzer/storage"
	"arxiv-analyzer/web"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	addr := flag.String("addr", "", "listen address (overrides listen_addr)")
	paperID := flag.String("id", "", "analyze one paper id or URL, print the result and exit")
	flag.Parse()

	// Structured JSON logging to stdout
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	// In CLI mode stdout carries the report, so logs go to stderr.
	logOut := io.Writer(os.Stdout)
	if *paperID != "" {
		logOut = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))
	slog.Info("config loaded", "cache_dir", cfg.CacheDir, "model", cfg.OllamaModel, "ollama_url", cfg.OllamaURL)

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if n, err := store.PaperCount(); err == nil {
		slog.Info("storage initialized", "db_path", cfg.DBPath, "papers", n)
	}

	// Initialize components
	fetchClient := &http.Client{Timeout: cfg.FetchTimeout()}
	arxivClient := arxiv.NewClientWithBaseURL(fetchClient, cfg.ArxivAPIURL)
	fetcher := arxiv.NewFetcher(arxivClient, cfg.CacheDir, &catalogAdapter{store: store})

	// Model calls are bounded by model_timeout_secs through the context.
	generator, err := analyzer.NewOllama(&http.Client{}, cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaJSONMode)
	if err != nil {
		slog.Error("failed to create model client", "error", err)
		os.Exit(1)
	}
	equationAnalyzer := analyzer.New(generator, cfg.ModelTimeout(), cfg.FallbackTextChars)

	renderer := plot.NewRenderer(filepath.Join(cfg.CacheDir, "plots"), cfg.PlotSamples)
	abstracts := scraper.NewScraper(cfg.ArxivAbsURL, cfg.FetchTimeout())

	runner := pipeline.NewRunner(fetcher, equationAnalyzer, renderer, abstracts, &runRecorderAdapter{store: store})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *paperID != "" {
		code := runOnce(ctx, runner, *paperID, os.Stdout)
		store.Close()
		os.Exit(code)
	}

	sched, err := scheduler.New(cfg.Timezone)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	retention := time.Duration(cfg.PlotRetentionHours) * time.Hour
	err = sched.Daily("plot-sweep", cfg.SweepTime, func() {
		n, err := plot.Sweep(renderer.Dir(), retention)
		if err != nil {
			slog.Error("plot sweep failed", "error", err)
			return
		}
		slog.Info("plot sweep complete", "removed", n, "retention", retention.String())
	})
	if err != nil {
		slog.Error("failed to schedule plot sweep", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	for _, name := range sched.Jobs() {
		if next, ok := sched.Next(name); ok {
			slog.Info("job scheduled", "job", name, "next_run", next.Format(time.RFC3339))
		}
	}

	catalogView := &paperListAdapter{store: store}
	srv := web.New(web.Deps{
		Analyzer: runner,
		Papers:   catalogView,
		Runs:     catalogView,
		PDFs:     fetcher,
		PlotDir:  renderer.Dir(),
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("received signal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped with error", "error", err)
	}
	slog.Info("shutdown complete")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// paperRunner is the part of pipeline.Runner the CLI needs.
type paperRunner interface {
	Run(ctx context.Context, input string) (*pipeline.Report, error)
}

// runOnce analyzes one paper and writes a plain-text report to w. It returns
// the process exit code.
func runOnce(ctx context.Context, runner paperRunner, input string, w io.Writer) int {
	report, err := runner.Run(ctx, input)
	if err != nil {
		fmt.Fprintf(w, "Error processing paper: %v\n", err)
		return 1
	}
	writeReport(w, report)
	return 0
}

func writeReport(w io.Writer, report *pipeline.Report) {
	p := report.Paper
	fmt.Fprintf(w, "Paper: %s\n", p.ID)
	if p.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", p.Title)
	}
	fmt.Fprintf(w, "PDF: %s (%s)\n", p.Path, humanize.Bytes(uint64(len(p.Content))))

	if report.TextError != "" {
		fmt.Fprintf(w, "Text extraction failed: %s\n", report.TextError)
	}

	if !report.UsedFallback() {
		fmt.Fprintf(w, "Found %d equations in the paper.\n", len(report.Equations))
		for i, eq := range report.Equations {
			fmt.Fprintf(w, "\n== Equation %d: %s\n", i+1, eq.Equation)
			if eq.Analysis.Failed() {
				fmt.Fprintf(w, "Error: %s\n", eq.Analysis.Error)
			}
			fmt.Fprintf(w, "Explanation: %s\n", eq.Analysis.Explanation)
			fmt.Fprintf(w, "Parameters: %s\n", eq.Analysis.ParametersText())
			if eq.Analysis.PythonCode != "" {
				fmt.Fprintf(w, "Code:\n%s\n", indent(eq.Analysis.PythonCode))
			}
			switch {
			case eq.PlotFile != "":
				fmt.Fprintf(w, "Plot: %s\n", eq.PlotFile)
			case eq.PlotError != "":
				fmt.Fprintf(w, "Could not plot equation: %s\n", eq.PlotError)
			}
		}
		return
	}

	fmt.Fprintln(w, "No equations found using standard LaTeX delimiters.")
	if report.Fallback != nil {
		for i, e := range report.Fallback.Entries {
			fmt.Fprintf(w, "\n== Equation %d: %s\n", i+1, e.Equation)
			fmt.Fprintf(w, "Explanation: %s\n", e.Explanation)
			if e.Code != "" {
				fmt.Fprintf(w, "Code:\n%s\n", indent(e.Code))
			}
		}
	}
	if report.FallbackError != "" {
		fmt.Fprintf(w, "Error analyzing paper: %s\n", report.FallbackError)
	}
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}

// --- Adapters to bridge package types ---

// catalogAdapter bridges storage.Store to arxiv.Catalog
type catalogAdapter struct {
	store *storage.Store
}

func (a *catalogAdapter) Lookup(id string) (*arxiv.CatalogEntry, error) {
	p, err := a.store.GetPaper(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	entry := &arxiv.CatalogEntry{
		ID:        p.ID,
		Title:     p.Title,
		PDFURL:    p.PDFURL,
		Path:      p.Path,
		SizeBytes: p.SizeBytes,
	}
	if p.Published != 0 {
		entry.Published = time.Unix(p.Published, 0).UTC()
	}
	return entry, nil
}

func (a *catalogAdapter) Save(e *arxiv.CatalogEntry) error {
	var published int64
	if !e.Published.IsZero() {
		published = e.Published.Unix()
	}
	return a.store.SavePaper(&storage.Paper{
		ID:        e.ID,
		Title:     e.Title,
		PDFURL:    e.PDFURL,
		Published: published,
		Path:      e.Path,
		SizeBytes: e.SizeBytes,
	})
}

// runRecorderAdapter bridges storage.Store to pipeline.RunRecorder
type runRecorderAdapter struct {
	store *storage.Store
}

func (a *runRecorderAdapter) RecordRun(r *pipeline.RunRecord) error {
	return a.store.RecordRun(&storage.Run{
		ID:            r.ID,
		PaperID:       r.PaperID,
		EquationCount: r.EquationCount,
		FailureCount:  r.FailureCount,
		Fallback:      r.Fallback,
		DurationMs:    r.Duration.Milliseconds(),
	})
}

// paperListAdapter bridges storage.Store to web.PaperLister and web.RunHistory
type paperListAdapter struct {
	store *storage.Store
}

func (a *paperListAdapter) RecentPapers(limit int) ([]web.PaperSummary, error) {
	papers, err := a.store.RecentPapers(limit)
	if err != nil {
		return nil, err
	}
	result := make([]web.PaperSummary, len(papers))
	for i, p := range papers {
		result[i] = web.PaperSummary{
			ID:        p.ID,
			Title:     p.Title,
			SizeBytes: p.SizeBytes,
			FetchedAt: time.Unix(p.FetchedAt, 0),
		}
		if p.Published != 0 {
			result[i].Published = time.Unix(p.Published, 0).UTC()
		}
	}
	return result, nil
}

func (a *paperListAdapter) RunsForPaper(id string) ([]web.RunSummary, error) {
	runs, err := a.store.RunsForPaper(id)
	if err != nil {
		return nil, err
	}
	result := make([]web.RunSummary, len(runs))
	for i, r := range runs {
		result[i] = web.RunSummary{
			EquationCount: r.EquationCount,
			FailureCount:  r.FailureCount,
			Fallback:      r.Fallback,
			Duration:      time.Duration(r.DurationMs) * time.Millisecond,
			CreatedAt:     time.Unix(r.CreatedAt, 0),
		}
	}
	return result, nil
}
