package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Paper is the catalog record of a fetched arXiv paper.
type Paper struct {
	ID        string // cleaned arXiv id (primary key)
	Title     string
	PDFURL    string
	Published int64 // Unix timestamp, 0 if unknown
	Path      string
	SizeBytes int64
	FetchedAt int64 // Unix timestamp
}

// Run records one analysis pass over a paper.
type Run struct {
	ID            string
	PaperID       string
	EquationCount int
	FailureCount  int
	Fallback      bool
	DurationMs    int64
	CreatedAt     int64 // Unix timestamp
}

// Store provides SQLite-backed persistence for the paper catalog and analysis runs.
type Store struct {
	db *sql.DB
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS papers (
	id TEXT PRIMARY KEY,
	title TEXT,
	pdf_url TEXT,
	published INTEGER,
	path TEXT,
	size_bytes INTEGER,
	fetched_at INTEGER
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	paper_id TEXT,
	equation_count INTEGER,
	failure_count INTEGER,
	fallback INTEGER,
	duration_ms INTEGER,
	created_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_paper ON analysis_runs(paper_id);
`

// New opens the SQLite database at dbPath, creates tables if they don't exist, and returns a Store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePaper inserts or replaces a paper record.
func (s *Store) SavePaper(p *Paper) error {
	if p.FetchedAt == 0 {
		p.FetchedAt = time.Now().Unix()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO papers (id, title, pdf_url, published, path, size_bytes, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.PDFURL, p.Published, p.Path, p.SizeBytes, p.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: save paper %s: %w", p.ID, err)
	}
	return nil
}

// GetPaper looks up a paper by id. Returns nil if no paper is found.
func (s *Store) GetPaper(id string) (*Paper, error) {
	var p Paper
	err := s.db.QueryRow(
		`SELECT id, title, pdf_url, published, path, size_bytes, fetched_at
		 FROM papers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.PDFURL, &p.Published, &p.Path, &p.SizeBytes, &p.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get paper %s: %w", id, err)
	}
	return &p, nil
}

// RecentPapers returns up to limit papers ordered by fetch time, newest first.
func (s *Store) RecentPapers(limit int) ([]Paper, error) {
	rows, err := s.db.Query(
		`SELECT id, title, pdf_url, published, path, size_bytes, fetched_at
		 FROM papers ORDER BY fetched_at DESC, id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent papers: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		var p Paper
		if err := rows.Scan(&p.ID, &p.Title, &p.PDFURL, &p.Published, &p.Path, &p.SizeBytes, &p.FetchedAt); err != nil {
			return nil, fmt.Errorf("storage: scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate papers: %w", err)
	}
	return papers, nil
}

// RecordRun inserts an analysis run record.
func (s *Store) RecordRun(r *Run) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}
	fallback := 0
	if r.Fallback {
		fallback = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO analysis_runs (id, paper_id, equation_count, failure_count, fallback, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PaperID, r.EquationCount, r.FailureCount, fallback, r.DurationMs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: record run %s: %w", r.ID, err)
	}
	return nil
}

// RunsForPaper returns the analysis runs of a paper, newest first.
func (s *Store) RunsForPaper(paperID string) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, paper_id, equation_count, failure_count, fallback, duration_ms, created_at
		 FROM analysis_runs WHERE paper_id = ? ORDER BY created_at DESC, rowid DESC`, paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: runs for paper %s: %w", paperID, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var fallback int
		if err := rows.Scan(&r.ID, &r.PaperID, &r.EquationCount, &r.FailureCount, &fallback, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		r.Fallback = fallback != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate runs: %w", err)
	}
	return runs, nil
}

// PaperCount returns the number of catalogued papers.
func (s *Store) PaperCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM papers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("storage: paper count: %w", err)
	}
	return count, nil
}
