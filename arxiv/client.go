package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// BaseURL is the arXiv export API root.
const BaseURL = "https://export.arxiv.org/api"

// maxPDFBytes bounds a single PDF download.
const maxPDFBytes = 100 << 20

// ErrNotFound is returned when the search API has no entry for an id.
var ErrNotFound = errors.New("arxiv: paper not found")

// Entry is the metadata of one paper returned by the search API.
type Entry struct {
	ID        string
	Title     string
	Summary   string
	PDFURL    string
	Published time.Time
}

// Client interface for arXiv API operations.
type Client interface {
	Lookup(ctx context.Context, id string) (*Entry, error)
	Download(ctx context.Context, pdfURL string) ([]byte, error)
}

type httpClient struct {
	client  *http.Client
	baseURL string
}

// NewClientWithBaseURL creates a new arXiv API client with a custom base URL.
// An empty baseURL means BaseURL.
func NewClientWithBaseURL(client *http.Client, baseURL string) Client {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &httpClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Links     []struct {
		Href  string `xml:"href,attr"`
		Type  string `xml:"type,attr"`
		Title string `xml:"title,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"link"`
}

// Lookup queries the search API for a single id and returns its metadata.
func (c *httpClient) Lookup(ctx context.Context, id string) (*Entry, error) {
	apiURL := fmt.Sprintf("%s/query?id_list=%s&max_results=1", c.baseURL, url.QueryEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating lookup request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup %s returned status %d", id, resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding lookup response for %s: %w", id, err)
	}

	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	raw := feed.Entries[0]
	if strings.Contains(raw.ID, "/api/errors") {
		return nil, fmt.Errorf("%w: %s: %s", ErrNotFound, id, strings.TrimSpace(raw.Summary))
	}

	entry := &Entry{
		ID:      raw.ID,
		Title:   strings.Join(strings.Fields(raw.Title), " "),
		Summary: strings.TrimSpace(raw.Summary),
	}
	if raw.Published != "" {
		if t, err := dateparse.ParseAny(raw.Published); err == nil {
			entry.Published = t
		}
	}

	for _, link := range raw.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			entry.PDFURL = link.Href
			break
		}
	}
	if entry.PDFURL == "" && strings.Contains(raw.ID, "/abs/") {
		entry.PDFURL = strings.Replace(raw.ID, "/abs/", "/pdf/", 1)
	}
	if entry.PDFURL == "" {
		return nil, fmt.Errorf("no PDF link for %s", id)
	}

	return entry, nil
}

// Download fetches the PDF bytes at pdfURL.
func (c *httpClient) Download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", pdfURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s returned status %d", pdfURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pdfURL, err)
	}
	if len(data) > maxPDFBytes {
		return nil, fmt.Errorf("download %s exceeds %d bytes", pdfURL, maxPDFBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download %s returned an empty body", pdfURL)
	}

	return data, nil
}
