package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestIngestTextCmd_InlineText(t *testing.T) {
	ingestSvc := &mockIngestService{textResp: &domain.IngestResponse{
		Source: "faq", Title: "FAQ", ChunksDeleted: 2, ChunksInserted: 5,
	}}
	useTestContainer(t, &container{ingest: ingestSvc})

	out, err := executeCommand(t, "", "ingest", "text", "--source", "faq", "--title", "FAQ", "--text", "hello world")

	require.NoError(t, err)
	assert.Contains(t, out, `Ingested "faq": 2 chunks deleted, 5 chunks inserted`)
	assert.Equal(t, "faq", ingestSvc.lastReq.Source)
	assert.Equal(t, "FAQ", ingestSvc.lastReq.Title)
	assert.Equal(t, "hello world", ingestSvc.lastReq.Text)
	assert.False(t, ingestSvc.lastReq.DryRun)
}

func TestIngestTextCmd_FromFileDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0o600))

	ingestSvc := &mockIngestService{textResp: &domain.IngestResponse{Source: "notes", ChunksInserted: 1, DryRun: true}}
	useTestContainer(t, &container{ingest: ingestSvc})

	out, err := executeCommand(t, "", "ingest", "text", "--source", "notes", "--file", path, "--dry-run")

	require.NoError(t, err)
	assert.Equal(t, "file body", ingestSvc.lastReq.Text)
	assert.True(t, ingestSvc.lastReq.DryRun)
	assert.Contains(t, out, "[dry run]")
}

func TestIngestTextCmd_FileAndTextExclusive(t *testing.T) {
	useTestContainer(t, &container{ingest: &mockIngestService{}})

	_, err := executeCommand(t, "", "ingest", "text", "--source", "s", "--file", "a.txt", "--text", "x")
	assert.Error(t, err)
}

func TestIngestTextCmd_MissingFile(t *testing.T) {
	useTestContainer(t, &container{ingest: &mockIngestService{}})

	_, err := executeCommand(t, "", "ingest", "text", "--source", "s", "--file", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestIngestPDFCmd_PassesOptions(t *testing.T) {
	ingestSvc := &mockIngestService{report: &domain.IngestReport{
		FilePath: "guide.pdf", DocID: "guide", DocName: "Guide", Source: "manual",
		TotalPages: 3, TotalChunks: 7, Inserted: 7, EstimatedTokens: 1200,
	}}
	useTestContainer(t, &container{ingest: ingestSvc})

	out, err := executeCommand(t, "", "ingest", "pdf", "guide.pdf",
		"--doc-id", "guide", "--doc-name", "Guide", "--source", "manual", "--version", "v2",
		"--chunk-size", "800", "--overlap", "100", "--min-chunk-size", "200",
		"--batch-size", "16", "--replace-source")

	require.NoError(t, err)
	assert.Equal(t, domain.IngestOptions{
		FilePath:      "guide.pdf",
		DocID:         "guide",
		DocName:       "Guide",
		Source:        "manual",
		Version:       "v2",
		ChunkSize:     800,
		Overlap:       100,
		MinChunkSize:  200,
		BatchSize:     16,
		ReplaceSource: true,
	}, ingestSvc.lastOpts)
	assert.Contains(t, out, "Chunks:    7 (inserted 7, updated 0, skipped 0)")
	assert.Contains(t, out, "Pages:     3")
}

func TestIngestFileAlias_JSON(t *testing.T) {
	ingestSvc := &mockIngestService{report: &domain.IngestReport{DocID: "doc", TotalChunks: 2, DryRun: true}}
	useTestContainer(t, &container{ingest: ingestSvc})

	out, err := executeCommand(t, "", "ingest", "file", "doc.md", "--dry-run", "--json")
	require.NoError(t, err)

	var report domain.IngestReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "doc", report.DocID)
	assert.True(t, report.DryRun)
	assert.True(t, ingestSvc.lastOpts.DryRun)
}

func TestIngestPDFCmd_ServiceError(t *testing.T) {
	useTestContainer(t, &container{ingest: &mockIngestService{err: domain.ErrUnsupportedType}})

	_, err := executeCommand(t, "", "ingest", "pdf", "image.png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestIngestPDFCmd_MinChunkSizeUsage(t *testing.T) {
	flag := ingestPDFCmd.Flags().Lookup("min-chunk-size")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "extend")
	assert.NotContains(t, flag.Usage, "drop")
}
