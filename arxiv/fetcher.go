package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// Paper is a resolved paper with its PDF bytes.
type Paper struct {
	ID        string
	Title     string
	PDFURL    string
	Published time.Time
	Path      string
	Content   []byte
	FromCache bool
}

// CatalogEntry is the paper metadata persisted alongside the cached PDF.
type CatalogEntry struct {
	ID        string
	Title     string
	PDFURL    string
	Published time.Time
	Path      string
	SizeBytes int64
}

// Catalog records metadata of fetched papers.
type Catalog interface {
	Lookup(id string) (*CatalogEntry, error)
	Save(entry *CatalogEntry) error
}

// Fetcher resolves ids to PDF bytes through an on-disk cache.
type Fetcher struct {
	client   Client
	cacheDir string
	catalog  Catalog
}

// NewFetcher creates a Fetcher caching PDFs under cacheDir. catalog may be nil.
func NewFetcher(client Client, cacheDir string, catalog Catalog) *Fetcher {
	return &Fetcher{
		client:   client,
		cacheDir: cacheDir,
		catalog:  catalog,
	}
}

// PathFor returns the cache path for a clean id.
func (f *Fetcher) PathFor(id string) string {
	return filepath.Join(f.cacheDir, CacheFileName(id))
}

// Fetch cleans input to an id and returns the paper, reading the cache when
// present and downloading (then caching) it otherwise.
func (f *Fetcher) Fetch(ctx context.Context, input string) (*Paper, error) {
	id := CleanID(input)
	if id == "" {
		return nil, fmt.Errorf("empty arXiv id in %q", input)
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", f.cacheDir, err)
	}

	path := f.PathFor(id)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		slog.Info("loading paper from cache", "id", id, "path", path, "size", humanize.Bytes(uint64(len(data))))
		paper := &Paper{ID: id, Path: path, Content: data, FromCache: true}
		f.fillFromCatalog(paper)
		return paper, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading cached paper %s: %w", path, err)
	}

	slog.Info("downloading paper", "id", id)
	entry, err := f.client.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err = f.client.Download(ctx, entry.PDFURL)
	if err != nil {
		return nil, err
	}

	if err := writeFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("caching paper %s: %w", id, err)
	}
	slog.Info("paper cached", "id", id, "path", path, "size", humanize.Bytes(uint64(len(data))))

	paper := &Paper{
		ID:        id,
		Title:     entry.Title,
		PDFURL:    entry.PDFURL,
		Published: entry.Published,
		Path:      path,
		Content:   data,
	}

	if f.catalog != nil {
		if err := f.catalog.Save(&CatalogEntry{
			ID:        id,
			Title:     entry.Title,
			PDFURL:    entry.PDFURL,
			Published: entry.Published,
			Path:      path,
			SizeBytes: int64(len(data)),
		}); err != nil {
			slog.Error("failed to record paper in catalog", "id", id, "error", err)
		}
	}

	return paper, nil
}

func (f *Fetcher) fillFromCatalog(p *Paper) {
	if f.catalog == nil {
		return
	}
	entry, err := f.catalog.Lookup(p.ID)
	if err != nil {
		slog.Warn("catalog lookup failed", "id", p.ID, "error", err)
		return
	}
	if entry == nil {
		// File placed in the cache by hand; list it with what we know.
		err := f.catalog.Save(&CatalogEntry{ID: p.ID, Path: p.Path, SizeBytes: int64(len(p.Content))})
		if err != nil {
			slog.Warn("failed to record cached paper in catalog", "id", p.ID, "error", err)
		}
		return
	}
	p.Title = entry.Title
	p.PDFURL = entry.PDFURL
	p.Published = entry.Published
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place so readers never see a partial PDF.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
