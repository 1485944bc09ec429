// Package loader dispatches file ingest to the loader for each format.
package loader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/loader/docx"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/loader/html"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/loader/pdf"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/loader/text"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.DocumentLoader = (*Registry)(nil)

// Registry holds loaders in priority order. The first loader that supports
// a path handles it.
type Registry struct {
	loaders []driven.DocumentLoader
}

// NewRegistry creates a registry over the given loaders.
func NewRegistry(loaders ...driven.DocumentLoader) *Registry {
	return &Registry{loaders: loaders}
}

// Default returns a registry with the PDF, DOCX, HTML and text loaders.
func Default() *Registry {
	return NewRegistry(pdf.New(), docx.New(), html.New(), text.New())
}

// Supports reports whether any registered loader handles path.
func (r *Registry) Supports(path string) bool {
	return r.find(path) != nil
}

// LoadPages delegates to the first loader that supports path.
func (r *Registry) LoadPages(ctx context.Context, path string) ([]domain.PageText, error) {
	l := r.find(path)
	if l == nil {
		return nil, fmt.Errorf("%w: no loader for %q files", domain.ErrUnsupportedType, filepath.Ext(path))
	}
	return l.LoadPages(ctx, path)
}

func (r *Registry) find(path string) driven.DocumentLoader {
	for _, l := range r.loaders {
		if l.Supports(path) {
			return l
		}
	}
	return nil
}
