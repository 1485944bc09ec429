package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	ingestSource  string
	ingestTitle   string
	ingestFile    string
	ingestText    string
	ingestDryRun  bool
	ingestJSON    bool
	ingestVersion string
	ingestDocID   string
	ingestDocName string
	ingestReplace bool

	ingestChunkSize    int
	ingestOverlap      int
	ingestMinChunkSize int
	ingestBatchSize    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index documents into the vector index",
	Long: `Segment documents into overlapping chunks, embed them and upsert them into
the configured vector index.`,
}

var ingestTextCmd = &cobra.Command{
	Use:   "text",
	Short: "Replace a source with the chunks of a text",
	Long: `Deletes every point of --source and inserts the chunks of the given text.
The text is read from --text or from --file.`,
	Args: cobra.NoArgs,
	RunE: runIngestText,
}

var ingestPDFCmd = &cobra.Command{
	Use:     "pdf [file]",
	Aliases: []string{"file"},
	Short:   "Ingest a PDF or text file",
	Long: `Loads the file page by page, segments it into chunks with page ranges and
upserts them under deterministic ids. Re-running an unchanged file skips every
chunk. Use --replace-source to delete other documents of the same source first.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestFile,
}

func init() {
	ingestTextCmd.Flags().StringVar(&ingestSource, "source", "", "source label to replace (required)")
	ingestTextCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestTextCmd.Flags().StringVar(&ingestFile, "file", "", "read the text from this file")
	ingestTextCmd.Flags().StringVar(&ingestText, "text", "", "text to ingest")
	ingestTextCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "chunk without touching the index")
	ingestTextCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	ingestTextCmd.MarkFlagsMutuallyExclusive("file", "text")

	f := ingestPDFCmd.Flags()
	f.StringVar(&ingestDocID, "doc-id", "", "document id (default: file stem)")
	f.StringVar(&ingestDocName, "doc-name", "", "document name (default: file stem)")
	f.StringVar(&ingestSource, "source", "", "source label")
	f.StringVar(&ingestVersion, "version", "", "document version label")
	f.IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size in characters")
	f.IntVar(&ingestOverlap, "overlap", 0, "overlap between chunks in characters")
	f.IntVar(&ingestMinChunkSize, "min-chunk-size", 0, "extend cuts that would leave a chunk shorter than this")
	f.IntVar(&ingestBatchSize, "batch-size", 0, "embedding batch size")
	f.BoolVar(&ingestDryRun, "dry-run", false, "segment without embedding or upserting")
	f.BoolVar(&ingestReplace, "replace-source", false, "delete other documents of the same source")
	f.BoolVar(&ingestJSON, "json", false, "output the report as JSON")

	ingestCmd.AddCommand(ingestTextCmd)
	ingestCmd.AddCommand(ingestPDFCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestText(cmd *cobra.Command, _ []string) error {
	text := ingestText
	if ingestFile != "" {
		data, err := os.ReadFile(ingestFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", ingestFile, err)
		}
		text = string(data)
	}

	if err := app.Init(cmd.Context()); err != nil {
		return err
	}

	resp, err := app.ingest.IngestText(cmd.Context(), domain.IngestRequest{
		Source: ingestSource,
		Title:  ingestTitle,
		Text:   text,
		DryRun: ingestDryRun,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		return printJSON(cmd, resp)
	}
	prefix := ""
	if resp.DryRun {
		prefix = "[dry run] "
	}
	cmd.Printf("%sIngested %q: %d chunks deleted, %d chunks inserted\n",
		prefix, resp.Source, resp.ChunksDeleted, resp.ChunksInserted)
	return nil
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	if err := app.Init(cmd.Context()); err != nil {
		return err
	}

	report, err := app.ingest.IngestFile(cmd.Context(), domain.IngestOptions{
		FilePath:      args[0],
		DocID:         ingestDocID,
		DocName:       ingestDocName,
		Source:        ingestSource,
		Version:       ingestVersion,
		ChunkSize:     ingestChunkSize,
		Overlap:       ingestOverlap,
		MinChunkSize:  ingestMinChunkSize,
		BatchSize:     ingestBatchSize,
		DryRun:        ingestDryRun,
		ReplaceSource: ingestReplace,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		return printJSON(cmd, report)
	}
	printIngestReport(cmd, report)
	return nil
}

func printIngestReport(cmd *cobra.Command, r *domain.IngestReport) {
	if r.DryRun {
		cmd.Println("Dry run, index not modified")
	}
	cmd.Printf("Document:  %s (%s)\n", r.DocName, r.DocID)
	cmd.Printf("Source:    %s\n", r.Source)
	if r.Version != "" {
		cmd.Printf("Version:   %s\n", r.Version)
	}
	cmd.Printf("Pages:     %d\n", r.TotalPages)
	cmd.Printf("Chunks:    %d (inserted %d, updated %d, skipped %d)\n",
		r.TotalChunks, r.Inserted, r.Updated, r.Skipped)
	if r.SourceDocsDeleted > 0 {
		cmd.Printf("Replaced:  %d points from other documents\n", r.SourceDocsDeleted)
	}
	cmd.Printf("Tokens:    ~%d (est. $%.6f)\n", r.EstimatedTokens, r.EstimatedEmbeddingCostUSD)
	cmd.Printf("Duration:  %.0fms\n", r.DurationMs)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
