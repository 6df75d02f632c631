package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	replies []string
	errs    []error
	prompts []string
	delay   time.Duration
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	i := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "", errors.New("no reply configured")
}

func TestAnalyzeEquations_Empty(t *testing.T) {
	gen := &mockGenerator{}
	a := New(gen, 0, 0)

	results := a.AnalyzeEquations(context.Background(), nil)
	assert.Empty(t, results)
	assert.Empty(t, gen.prompts, "model must not be called for no equations")
}

func TestAnalyzeEquations_Success(t *testing.T) {
	gen := &mockGenerator{replies: []string{
		`{"explanation":"Mass-energy equivalence","python_code":"E = m * c**2","parameters":{"m":"mass","c":"speed of light"},"plot":{"expression":"x * 9","variable":"x","x_min":0,"x_max":5}}`,
	}}
	a := New(gen, 0, 0)

	results := a.AnalyzeEquations(context.Background(), []string{"E = mc^2"})
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "E = mc^2", r.Equation)
	assert.False(t, r.Analysis.Failed())
	assert.Equal(t, "Mass-energy equivalence", r.Analysis.Explanation)
	assert.Equal(t, "E = m * c**2", r.Analysis.PythonCode)
	assert.Equal(t, map[string]any{"m": "mass", "c": "speed of light"}, r.Analysis.Parameters)
	require.NotNil(t, r.Analysis.Plot)
	assert.Equal(t, PlotSpec{Expression: "x * 9", Variable: "x", XMin: 0, XMax: 5}, *r.Analysis.Plot)
	assert.Contains(t, gen.prompts[0], "Equation: E = mc^2")
}

func TestAnalyzeEquations_MalformedReplyYieldsErrorRecord(t *testing.T) {
	replies := []string{
		"Sure! The equation describes energy.",
		"",
		"{broken",
		"<think>{\"explanation\":\"hidden\"}</think>",
	}
	for _, reply := range replies {
		gen := &mockGenerator{replies: []string{reply}}
		a := New(gen, 0, 0)

		results := a.AnalyzeEquations(context.Background(), []string{"x^2"})
		require.Len(t, results, 1)

		an := results[0].Analysis
		assert.True(t, an.Failed(), "reply %q", reply)
		assert.Equal(t, FailedExplanation, an.Explanation)
		assert.NotEmpty(t, an.Explanation)
		assert.Empty(t, an.PythonCode)
		assert.Equal(t, map[string]any{}, an.Parameters)
		assert.Equal(t, reply, results[0].RawResponse)
	}
}

func TestAnalyzeEquations_FailureDoesNotAbortBatch(t *testing.T) {
	gen := &mockGenerator{
		replies: []string{"", `{"explanation":"second"}`, `{"explanation":"third"}`},
		errs:    []error{errors.New("connection refused")},
	}
	a := New(gen, 0, 0)

	results := a.AnalyzeEquations(context.Background(), []string{"a", "b", "c"})
	require.Len(t, results, 3)

	assert.True(t, results[0].Analysis.Failed())
	assert.Contains(t, results[0].Analysis.Error, "connection refused")
	assert.Equal(t, "connection refused", results[0].RawResponse)
	assert.Equal(t, "second", results[1].Analysis.Explanation)
	assert.Equal(t, "third", results[2].Analysis.Explanation)
	assert.Len(t, gen.prompts, 3)
}

func TestAnalyzeEquations_LenientKeys(t *testing.T) {
	gen := &mockGenerator{replies: []string{
		"```json\n{\"explanation\": [\"line one\", \"line two\"], \"parameters\": [\"a\", \"b\"], \"plot\": \"sin(x)\"}\n```",
	}}
	a := New(gen, 0, 0)

	results := a.AnalyzeEquations(context.Background(), []string{"y = sin(x)"})
	require.Len(t, results, 1)

	an := results[0].Analysis
	assert.False(t, an.Failed())
	assert.Equal(t, `["line one","line two"]`, an.Explanation)
	assert.Empty(t, an.PythonCode)
	assert.Equal(t, []any{"a", "b"}, an.Parameters)
	require.NotNil(t, an.Plot)
	assert.Equal(t, "sin(x)", an.Plot.Expression)
}

func TestAnalyzeEquations_MissingPlot(t *testing.T) {
	gen := &mockGenerator{replies: []string{`{"explanation":"e","plot":{"variable":"t"}}`}}
	a := New(gen, 0, 0)

	results := a.AnalyzeEquations(context.Background(), []string{"e"})
	assert.Nil(t, results[0].Analysis.Plot)
	assert.Equal(t, map[string]any{}, results[0].Analysis.Parameters)
}

func TestAnalyzeEquations_Timeout(t *testing.T) {
	gen := &mockGenerator{delay: time.Second, replies: []string{`{}`}}
	a := New(gen, 10*time.Millisecond, 0)

	results := a.AnalyzeEquations(context.Background(), []string{"x"})
	require.Len(t, results, 1)
	assert.True(t, results[0].Analysis.Failed())
	assert.Contains(t, results[0].Analysis.Error, context.DeadlineExceeded.Error())
}

func TestAnalyzePaper_Zips(t *testing.T) {
	gen := &mockGenerator{replies: []string{
		`{"equations":["E=mc^2","F=ma","p=mv"],"explanations":["energy","force"],"python_codes":["e=m*c**2","f=m*a","p=m*v"]}`,
	}}
	a := New(gen, 0, 0)

	pa, err := a.AnalyzePaper(context.Background(), "paper text")
	require.NoError(t, err)
	require.Len(t, pa.Entries, 2)
	assert.Equal(t, PaperEntry{Equation: "E=mc^2", Explanation: "energy", Code: "e=m*c**2"}, pa.Entries[0])
	assert.Equal(t, PaperEntry{Equation: "F=ma", Explanation: "force", Code: "f=m*a"}, pa.Entries[1])
	assert.NotEmpty(t, pa.RawResponse)
}

func TestAnalyzePaper_TruncatesText(t *testing.T) {
	gen := &mockGenerator{replies: []string{`{}`}}
	a := New(gen, 0, 10)

	text := "0123456789" + strings.Repeat("Z", 50)
	pa, err := a.AnalyzePaper(context.Background(), text)
	require.NoError(t, err)
	assert.Empty(t, pa.Entries)
	assert.Contains(t, gen.prompts[0], "Paper text: 0123456789\n")
	assert.NotContains(t, gen.prompts[0], "Z")
}

func TestAnalyzePaper_ParseError(t *testing.T) {
	gen := &mockGenerator{replies: []string{"no json here"}}
	a := New(gen, 0, 0)

	pa, err := a.AnalyzePaper(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoJSON)
	require.NotNil(t, pa)
	assert.Equal(t, "no json here", pa.RawResponse)
}

func TestAnalyzePaper_ModelError(t *testing.T) {
	gen := &mockGenerator{errs: []error{errors.New("down")}}
	a := New(gen, 0, 0)

	pa, err := a.AnalyzePaper(context.Background(), "text")
	assert.Error(t, err)
	assert.Nil(t, pa)
}

func TestParametersText(t *testing.T) {
	assert.Equal(t, "{}", Analysis{}.ParametersText())
	assert.Equal(t, "plain", Analysis{Parameters: "plain"}.ParametersText())
	assert.Equal(t, "{\n  \"m\": \"mass\"\n}", Analysis{Parameters: map[string]any{"m": "mass"}}.ParametersText())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "αβ", truncate("αβγ", 2))
}
