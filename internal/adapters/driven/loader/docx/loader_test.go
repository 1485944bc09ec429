package docx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestLoader_Supports(t *testing.T) {
	l := New()
	assert.True(t, l.Supports("contract.docx"))
	assert.True(t, l.Supports("CONTRACT.DOCX"))
	assert.False(t, l.Supports("contract.doc"))
	assert.False(t, l.Supports("contract.pdf"))
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := New().LoadPages(context.Background(), filepath.Join(t.TempDir(), "missing.docx"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoader_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a zip archive"), 0o600))

	_, err := New().LoadPages(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "Title\nBody line", normalise("  Title \r\n\n\n Body line \n"))
	assert.Equal(t, "", normalise(" \n\t\n"))
}
