// Package plot evaluates single-variable expressions and renders them as PNG
// line charts.
package plot

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gonum.org/v1/plot/plotter"
)

// Defaults applied when a plot omits its variable or range, or a renderer is
// given fewer than two samples.
const (
	DefaultVariable = "x"
	DefaultMin      = -10.0
	DefaultMax      = 10.0
	DefaultSamples  = 200

	maxExpressionLen = 512
)

// ErrNoPoints is returned when no sample of an expression is a finite number.
var ErrNoPoints = errors.New("plot: expression has no finite values in range")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Spec describes what to plot.
type Spec struct {
	Expression string
	Variable   string
	XMin       float64
	XMax       float64
}

// normalized fills in the default variable and range.
func (s Spec) normalized() Spec {
	s.Expression = strings.TrimSpace(s.Expression)
	s.Variable = strings.TrimSpace(s.Variable)
	if s.Variable == "" {
		s.Variable = DefaultVariable
	}
	if !(s.XMin < s.XMax) || math.IsInf(s.XMin, 0) || math.IsInf(s.XMax, 0) {
		s.XMin, s.XMax = DefaultMin, DefaultMax
	}
	return s
}

// functions available to expressions. abs, ceil, floor, round, min and max
// come from the expression language itself.
var functions = map[string]any{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"atan2": math.Atan2,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"exp":   math.Exp,
	"log":   math.Log,
	"ln":    math.Log,
	"log2":  math.Log2,
	"log10": math.Log10,
	"sqrt":  math.Sqrt,
	"cbrt":  math.Cbrt,
	"pow":   math.Pow,
	"hypot": math.Hypot,
	"pi":    math.Pi,
	"e":     math.E,
}

// Models often write numpy or math style calls.
var prefixes = strings.NewReplacer("np.", "", "numpy.", "", "math.", "")

func compile(s Spec) (*vm.Program, map[string]any, error) {
	if s.Expression == "" {
		return nil, nil, errors.New("plot: empty expression")
	}
	if len(s.Expression) > maxExpressionLen {
		return nil, nil, fmt.Errorf("plot: expression longer than %d characters", maxExpressionLen)
	}
	if !identifier.MatchString(s.Variable) {
		return nil, nil, fmt.Errorf("plot: invalid variable name %q", s.Variable)
	}

	env := make(map[string]any, len(functions)+1)
	for k, v := range functions {
		env[k] = v
	}
	env[s.Variable] = 0.0

	program, err := expr.Compile(prefixes.Replace(s.Expression), expr.Env(env))
	if err != nil {
		return nil, nil, fmt.Errorf("plot: compiling %q: %w", s.Expression, err)
	}
	return program, env, nil
}

// Sample evaluates spec at n evenly spaced points and returns the finite
// ones. Defaults are applied for a missing variable or range.
func Sample(spec Spec, n int) (plotter.XYs, error) {
	spec = spec.normalized()
	if n < 2 {
		n = DefaultSamples
	}

	program, env, err := compile(spec)
	if err != nil {
		return nil, err
	}

	step := (spec.XMax - spec.XMin) / float64(n-1)
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		x := spec.XMin + float64(i)*step
		env[spec.Variable] = x

		out, err := expr.Run(program, env)
		if err != nil {
			// Runtime errors at single points (e.g. division by an integer zero)
			// are treated like non-finite values.
			continue
		}
		y, err := toFloat(out)
		if err != nil {
			return nil, fmt.Errorf("plot: %q: %w", spec.Expression, err)
		}
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}

	if len(pts) < 2 {
		return nil, ErrNoPoints
	}
	return pts, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("expression yields %T, not a number", v)
	}
}
