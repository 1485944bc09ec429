package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// stubLoader is a test double for DocumentLoader.
type stubLoader struct {
	ext   string
	pages []domain.PageText
	calls int
}

func (s *stubLoader) Supports(path string) bool {
	return len(path) >= len(s.ext) && path[len(path)-len(s.ext):] == s.ext
}

func (s *stubLoader) LoadPages(_ context.Context, _ string) ([]domain.PageText, error) {
	s.calls++
	return s.pages, nil
}

func TestRegistry_Dispatch(t *testing.T) {
	a := &stubLoader{ext: ".a", pages: []domain.PageText{{Page: 1, Text: "from a"}}}
	b := &stubLoader{ext: ".b", pages: []domain.PageText{{Page: 1, Text: "from b"}}}
	r := NewRegistry(a, b)

	pages, err := r.LoadPages(context.Background(), "doc.b")

	require.NoError(t, err)
	assert.Equal(t, "from b", pages[0].Text)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	first := &stubLoader{ext: ".x"}
	second := &stubLoader{ext: ".x"}

	_, err := NewRegistry(first, second).LoadPages(context.Background(), "f.x")

	require.NoError(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := Default()
	assert.True(t, r.Supports("manual.pdf"))
	assert.True(t, r.Supports("notes.md"))
	assert.True(t, r.Supports("contract.docx"))
	assert.True(t, r.Supports("page.html"))
	assert.False(t, r.Supports("sheet.xlsx"))

	_, err := r.LoadPages(context.Background(), "sheet.xlsx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
