// Package analyzer asks a local language model to explain equations.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// FailedExplanation is the explanation carried by every error record.
const FailedExplanation = "Could not analyze equation"

// DefaultFallbackChars is how much paper text the paper-level prompt sees.
const DefaultFallbackChars = 2000

// PlotSpec is a plottable form of an equation suggested by the model.
// A zero range means the caller should pick one.
type PlotSpec struct {
	Expression string
	Variable   string
	XMin       float64
	XMax       float64
}

// Analysis is the model's structured answer for one equation. Error is set
// when the model could not be reached or its reply could not be decoded.
type Analysis struct {
	Explanation string
	PythonCode  string
	Parameters  any
	Plot        *PlotSpec
	Error       string
}

// ParametersText renders Parameters for display.
func (a Analysis) ParametersText() string {
	switch p := a.Parameters.(type) {
	case nil:
		return "{}"
	case string:
		return p
	default:
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Sprint(p)
		}
		return string(b)
	}
}

// Failed reports whether this is an error record.
func (a Analysis) Failed() bool {
	return a.Error != ""
}

// Result pairs an equation with its analysis and the raw model reply.
type Result struct {
	Equation    string
	Analysis    Analysis
	RawResponse string
}

// PaperEntry is one equation found by the paper-level prompt.
type PaperEntry struct {
	Equation    string
	Explanation string
	Code        string
}

// PaperAnalysis is the paper-level answer used when no equations were
// extracted from the text.
type PaperAnalysis struct {
	Entries     []PaperEntry
	RawResponse string
}

// Analyzer drives the per-equation and paper-level prompts.
type Analyzer struct {
	gen           Generator
	timeout       time.Duration
	fallbackChars int
}

// New creates an Analyzer. A zero timeout leaves model calls bounded only by
// the caller's context; fallbackChars <= 0 selects DefaultFallbackChars.
func New(gen Generator, timeout time.Duration, fallbackChars int) *Analyzer {
	if fallbackChars <= 0 {
		fallbackChars = DefaultFallbackChars
	}
	return &Analyzer{
		gen:           gen,
		timeout:       timeout,
		fallbackChars: fallbackChars,
	}
}

func equationPrompt(eq string) string {
	return fmt.Sprintf(`Analyze this mathematical equation and provide:
1. A clear explanation of what the equation represents
2. Python code to implement and plot this equation
3. Key parameters and their meanings
4. A single-variable expression that can be plotted

Equation: %s

Respond in JSON format with these keys:
- explanation (string)
- python_code (string)
- parameters (object mapping each parameter to its meaning)
- plot (object with "expression", "variable", "x_min", "x_max"; the expression
  uses only the variable, numbers, + - * / ^ and functions such as sin, cos,
  tan, exp, log, sqrt, abs, pow; substitute example values for all other
  parameters)`, eq)
}

func paperPrompt(text string) string {
	return fmt.Sprintf(`Analyze this research paper and identify:
1. Key mathematical equations or formulas
2. Their explanations
3. Python code to implement them

Paper text: %s

Respond in JSON format with these keys:
- equations (list of equations found)
- explanations (list of explanations)
- python_codes (list of Python implementations)`, text)
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.gen.Generate(ctx, prompt)
}

// AnalyzeEquations analyzes each equation in order, one model call at a time.
// A failure for one equation yields an error record for it and the batch
// continues; the returned slice always has one result per equation.
func (a *Analyzer) AnalyzeEquations(ctx context.Context, eqs []string) []Result {
	results := make([]Result, 0, len(eqs))
	for i, eq := range eqs {
		results = append(results, a.analyzeOne(ctx, eq))
		slog.Debug("equation analyzed", "index", i+1, "total", len(eqs))
	}
	return results
}

func (a *Analyzer) analyzeOne(ctx context.Context, eq string) Result {
	reply, err := a.generate(ctx, equationPrompt(eq))
	if err != nil {
		slog.Warn("model call failed", "equation", eq, "error", err)
		return errorResult(eq, err, err.Error())
	}
	slog.Debug("raw model reply", "equation", eq, "reply", reply)

	obj, err := parseObject(reply)
	if err != nil {
		slog.Warn("failed to parse model reply", "equation", eq, "error", err)
		return errorResult(eq, err, reply)
	}

	return Result{
		Equation:    eq,
		Analysis:    decodeAnalysis(obj),
		RawResponse: reply,
	}
}

func errorResult(eq string, err error, raw string) Result {
	return Result{
		Equation: eq,
		Analysis: Analysis{
			Error:       err.Error(),
			Explanation: FailedExplanation,
			Parameters:  map[string]any{},
		},
		RawResponse: raw,
	}
}

// decodeAnalysis accepts any subset of the expected keys. Missing keys stay
// empty and values of the wrong type are rendered as text.
func decodeAnalysis(obj map[string]any) Analysis {
	an := Analysis{
		Explanation: asString(obj["explanation"]),
		PythonCode:  asString(obj["python_code"]),
		Parameters:  obj["parameters"],
	}
	if an.Parameters == nil {
		an.Parameters = map[string]any{}
	}

	switch p := obj["plot"].(type) {
	case map[string]any:
		spec := &PlotSpec{
			Expression: asString(p["expression"]),
			Variable:   asString(p["variable"]),
		}
		spec.XMin, _ = asFloat(p["x_min"])
		spec.XMax, _ = asFloat(p["x_max"])
		if spec.Expression != "" {
			an.Plot = spec
		}
	case string:
		if p != "" {
			an.Plot = &PlotSpec{Expression: p}
		}
	}
	return an
}

// AnalyzePaper runs the paper-level prompt over the leading part of text and
// returns the equations, explanations and code snippets zipped to the
// shortest list. On a decode failure the raw reply is still returned.
func (a *Analyzer) AnalyzePaper(ctx context.Context, text string) (*PaperAnalysis, error) {
	reply, err := a.generate(ctx, paperPrompt(truncate(text, a.fallbackChars)))
	if err != nil {
		return nil, fmt.Errorf("analyzing paper: %w", err)
	}
	slog.Debug("raw model reply for paper", "reply", reply)

	out := &PaperAnalysis{RawResponse: reply}
	obj, err := parseObject(reply)
	if err != nil {
		return out, fmt.Errorf("analyzing paper: %w", err)
	}

	eqs := asStrings(obj["equations"])
	expls := asStrings(obj["explanations"])
	codes := asStrings(obj["python_codes"])

	n := min(len(eqs), len(expls), len(codes))
	out.Entries = make([]PaperEntry, 0, n)
	for i := 0; i < n; i++ {
		out.Entries = append(out.Entries, PaperEntry{
			Equation:    eqs[i],
			Explanation: expls[i],
			Code:        codes[i],
		})
	}
	return out, nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
