package text

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestSupports(t *testing.T) {
	l := New()
	for _, p := range []string{"a.txt", "b.MD", "c.markdown", "d.text"} {
		assert.True(t, l.Supports(p), p)
	}
	for _, p := range []string{"a.pdf", "b", "c.docx"} {
		assert.False(t, l.Supports(p), p)
	}
}

func TestLoadPages_SinglePage(t *testing.T) {
	path := writeFile(t, "notes.md", []byte("\n# Title\n\nBody text.\n"))

	pages, err := New().LoadPages(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []domain.PageText{{Page: 1, Text: "# Title\n\nBody text."}}, pages)
}

func TestLoadPages_FormFeedSplitsPages(t *testing.T) {
	path := writeFile(t, "export.txt", []byte("page one\f\f  \fpage four"))

	pages, err := New().LoadPages(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []domain.PageText{
		{Page: 1, Text: "page one"},
		{Page: 4, Text: "page four"},
	}, pages)
}

func TestLoadPages_Errors(t *testing.T) {
	_, err := New().LoadPages(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	path := writeFile(t, "binary.txt", []byte{0xff, 0xfe, 0x00})
	_, err = New().LoadPages(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
