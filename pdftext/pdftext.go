// Package pdftext extracts plain text from PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a document parses but yields no text at all.
var ErrNoText = errors.New("pdftext: no extractable text")

// Pages returns the plain text of every page, in page order. Pages without a
// content stream produce an empty string.
func Pages(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, errors.New("pdftext: empty document")
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdftext: malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdftext: opening document: %w", err)
	}

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() || p.V.Key("Contents").IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdftext: page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Join concatenates page texts with newlines. It returns ErrNoText when every
// page is blank.
func Join(pages []string) (string, error) {
	joined := strings.Join(pages, "\n")
	if strings.TrimSpace(joined) == "" {
		return "", ErrNoText
	}
	return joined, nil
}
