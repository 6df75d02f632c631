// Package scraper extracts readable text from arXiv abstract pages.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// DefaultAbsURL is the root of arXiv abstract pages.
const DefaultAbsURL = "https://arxiv.org/abs"

const maxContentLength = 4000

// Scraper fetches the readable text of a paper's abstract page.
type Scraper interface {
	Abstract(ctx context.Context, id string) (string, error)
}

type httpScraper struct {
	client  *http.Client
	absURL  string
	maxRune int
}

// NewScraper creates a Scraper for abstract pages under absURL with the given
// timeout for HTTP requests.
func NewScraper(absURL string, timeout time.Duration) Scraper {
	return NewScraperWithClient(&http.Client{Timeout: timeout}, absURL)
}

// NewScraperWithClient creates a Scraper with a custom HTTP client.
func NewScraperWithClient(client *http.Client, absURL string) Scraper {
	if absURL == "" {
		absURL = DefaultAbsURL
	}
	return &httpScraper{
		client:  client,
		absURL:  strings.TrimRight(absURL, "/"),
		maxRune: maxContentLength,
	}
}

// Abstract fetches <absURL>/<id> and returns its main text, truncated to
// 4000 characters.
func (s *httpScraper) Abstract(ctx context.Context, id string) (string, error) {
	pageURL := s.absURL + "/" + id

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating scrape request for %s: %w", pageURL, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scraping %s returned status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extracting content from %s: %w", pageURL, err)
	}

	content := strings.Join(strings.Fields(article.TextContent), " ")
	if r := []rune(content); len(r) > s.maxRune {
		content = string(r[:s.maxRune])
	}
	if content == "" {
		return "", fmt.Errorf("no readable text at %s", pageURL)
	}

	return content, nil
}
