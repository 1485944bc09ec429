// Package text loads plain text and Markdown files.
package text

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// PageBreak separates pages in text exported from paged formats.
const PageBreak = "\f"

// Loader reads UTF-8 text files. Form feeds split pages; a file without
// them is a single page.
type Loader struct {
	extensions map[string]bool
}

// New creates a text loader for .txt, .text, .md and .markdown files.
func New() *Loader {
	return &Loader{extensions: map[string]bool{
		".txt":      true,
		".text":     true,
		".md":       true,
		".markdown": true,
	}}
}

// Supports reports whether the extension is a known text format.
func (l *Loader) Supports(path string) bool {
	return l.extensions[strings.ToLower(filepath.Ext(path))]
}

// LoadPages reads the file and returns its non-empty pages.
func (l *Loader) LoadPages(_ context.Context, path string) ([]domain.PageText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrInvalidInput, path)
	}

	var pages []domain.PageText
	for i, part := range strings.Split(string(data), PageBreak) {
		if text := strings.TrimSpace(part); text != "" {
			pages = append(pages, domain.PageText{Page: i + 1, Text: text})
		}
	}
	return pages, nil
}
