package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentLoader extracts page text from a file on disk.
type DocumentLoader interface {
	// LoadPages returns the cleaned, non-empty pages of the file in order.
	LoadPages(ctx context.Context, path string) ([]domain.PageText, error)

	// Supports reports whether the loader handles the given file path.
	Supports(path string) bool
}
