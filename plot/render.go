package plot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg" // registers the png format
)

// Renderer draws plots into a directory of content-addressed PNG files.
type Renderer struct {
	dir     string
	samples int
}

// NewRenderer creates a Renderer writing under dir with n samples per plot.
func NewRenderer(dir string, samples int) *Renderer {
	if samples < 2 {
		samples = DefaultSamples
	}
	return &Renderer{dir: dir, samples: samples}
}

// Dir returns the output directory.
func (r *Renderer) Dir() string {
	return r.dir
}

// FileName returns the name a spec renders to. Equal specs share a file.
func (r *Renderer) FileName(spec Spec) string {
	spec = spec.normalized()
	key := fmt.Sprintf("%s\x00%s\x00%g\x00%g\x00%d", spec.Expression, spec.Variable, spec.XMin, spec.XMax, r.samples)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:12]) + ".png"
}

// Render evaluates spec and writes a PNG line chart titled title. It returns
// the file name relative to Dir. An existing file for the same spec is reused.
func (r *Renderer) Render(spec Spec, title string) (string, error) {
	spec = spec.normalized()
	name := r.FileName(spec)
	path := filepath.Join(r.dir, name)

	if _, err := os.Stat(path); err == nil {
		now := time.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			slog.Warn("failed to touch plot", "file", name, "error", err)
		}
		return name, nil
	}

	pts, err := Sample(spec, r.samples)
	if err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = spec.Variable
	p.Y.Label.Text = "f(" + spec.Variable + ")"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("plot: building line: %w", err)
	}
	p.Add(line)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return "", fmt.Errorf("plot: creating canvas: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("plot: creating %s: %w", r.dir, err)
	}
	tmp, err := os.CreateTemp(r.dir, ".render-*")
	if err != nil {
		return "", fmt.Errorf("plot: %w", err)
	}
	if _, err := wt.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("plot: writing png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("plot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("plot: %w", err)
	}

	slog.Debug("plot rendered", "expression", spec.Expression, "file", name, "points", len(pts))
	return name, nil
}

// Sweep removes PNG files in dir last modified before now minus olderThan and
// returns how many were removed. A missing dir is not an error.
func Sweep(dir string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("plot: reading %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				slog.Warn("failed to remove stale plot", "file", e.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
