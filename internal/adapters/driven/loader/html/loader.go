// Package html loads HTML pages as a single page of readable text.
package html

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// skipped elements never contribute text.
const skipped = "head, script, style, noscript, svg, template, iframe"

// blocks end a line of text.
const blocks = "p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote, pre, table, section, article, header, footer, dt, dd"

// Loader extracts text from .html and .htm files.
type Loader struct{}

// New creates an HTML loader.
func New() *Loader {
	return &Loader{}
}

// Supports reports whether path has an HTML extension.
func (l *Loader) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}

// LoadPages returns the document text as page 1. Documents without text
// yield no pages.
func (l *Loader) LoadPages(_ context.Context, path string) ([]domain.PageText, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html %s: %v", domain.ErrInvalidInput, path, err)
	}

	text := Extract(doc)
	if text == "" {
		return nil, nil
	}
	return []domain.PageText{{Page: 1, Text: text}}, nil
}

// Extract returns the visible text of doc with one line per block element.
func Extract(doc *goquery.Document) string {
	doc.Find(skipped).Remove()
	doc.Find("br, hr").ReplaceWithHtml("\n")
	doc.Find(blocks).AppendHtml("\n")

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
