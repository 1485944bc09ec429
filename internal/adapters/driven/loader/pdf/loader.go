// Package pdf loads page text from PDF files.
//
// Extraction uses github.com/ledongthuc/pdf row by row. Lines that repeat at
// the top or bottom of many pages (running headers, footers, page numbers
// with fixed text) are removed before pages are returned.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

const (
	// edgeLines is how many lines at each end of a page are header or
	// footer candidates.
	edgeLines = 2

	// minRepeatThreshold is the least number of occurrences that marks an
	// edge line as repeated.
	minRepeatThreshold = 3

	// minRepeatedLen excludes very short lines such as bare page numbers.
	minRepeatedLen = 4
)

// Loader extracts cleaned page text from PDF files.
type Loader struct{}

// New creates a PDF loader.
func New() *Loader {
	return &Loader{}
}

// Supports reports whether path has a .pdf extension.
func (l *Loader) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// LoadPages reads every page of the file and returns the non-empty ones.
func (l *Loader) LoadPages(ctx context.Context, path string) ([]domain.PageText, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: PDF %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat PDF: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	raw := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			logger.Warn("pdf %s: page %d is null, skipping", path, i)
			raw = append(raw, "")
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		raw = append(raw, text)
	}

	pages := Clean(raw)
	logger.Debug("pdf %s: %d pages read, %d kept", path, total, len(pages))
	return pages, nil
}

// pageText joins the page's text rows with newlines.
func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, row := range rows {
		for _, t := range row.Content {
			b.WriteString(t.S)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Clean normalises raw page texts and strips repeated header and footer
// lines. raw[i] is page i+1. Pages left empty are dropped.
func Clean(raw []string) []domain.PageText {
	cleaned := make([]string, len(raw))
	counts := make(map[string]int)
	for i, text := range raw {
		cleaned[i] = cleanPageText(text)
		if cleaned[i] == "" {
			continue
		}
		for key := range edgeKeys(strings.Split(cleaned[i], "\n")) {
			counts[key]++
		}
	}

	threshold := max(minRepeatThreshold, len(raw)/3)
	repeated := make(map[string]bool)
	for line, n := range counts {
		if n >= threshold && len([]rune(line)) >= minRepeatedLen {
			repeated[line] = true
		}
	}

	pages := make([]domain.PageText, 0, len(raw))
	for i, text := range cleaned {
		if text == "" {
			continue
		}
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if !repeated[repetitionKey(line)] {
				kept = append(kept, line)
			}
		}
		if final := strings.TrimSpace(strings.Join(kept, "\n")); final != "" {
			pages = append(pages, domain.PageText{Page: i + 1, Text: final})
		}
	}
	return pages
}

// cleanPageText joins hyphenated line breaks, collapses whitespace within
// lines and drops blank lines.
func cleanPageText(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "-\n", "")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// edgeKeys returns the repetition keys of the first and last edgeLines
// lines. A line is counted once per page.
func edgeKeys(lines []string) map[string]struct{} {
	keys := make(map[string]struct{}, 2*edgeLines)
	for i, line := range lines {
		if i < edgeLines || i >= len(lines)-edgeLines {
			keys[repetitionKey(line)] = struct{}{}
		}
	}
	return keys
}

func repetitionKey(line string) string {
	return strings.ToLower(strings.Join(strings.Fields(line), " "))
}
