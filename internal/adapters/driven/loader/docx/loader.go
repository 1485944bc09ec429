// Package docx loads Word documents.
package docx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader extracts paragraph text from .docx files. Word documents carry no
// reliable page boundaries, so the whole body is page 1.
type Loader struct{}

// New creates a DOCX loader.
func New() *Loader {
	return &Loader{}
}

// Supports reports whether path is a .docx file.
func (l *Loader) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".docx")
}

// LoadPages converts the document to text.
func (l *Loader) LoadPages(_ context.Context, path string) ([]domain.PageText, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	body, _, err := docconv.ConvertDocx(f)
	if err != nil {
		return nil, fmt.Errorf("%w: convert docx %s: %v", domain.ErrInvalidInput, path, err)
	}

	text := normalise(body)
	if text == "" {
		return nil, nil
	}
	return []domain.PageText{{Page: 1, Text: text}}, nil
}

// normalise trims every line and drops blank ones.
func normalise(body string) string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r", ""), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
