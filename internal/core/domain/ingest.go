package domain

// IngestRequest asks for a block of raw text to be indexed under a source.
// Text ingest always replaces any previously indexed points of the source.
type IngestRequest struct {
	Source   string         `json:"source"`
	Title    string         `json:"title,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	DryRun   bool           `json:"dryRun,omitempty"`
}

// IngestResponse summarises a text ingest.
type IngestResponse struct {
	Source         string `json:"source"`
	Title          string `json:"title"`
	ChunksDeleted  int    `json:"chunksDeleted"`
	ChunksInserted int    `json:"chunksInserted"`
	DryRun         bool   `json:"dryRun,omitempty"`
}

// IngestOptions configures a file ingest. Zero values fall back to the
// configured defaults.
type IngestOptions struct {
	// FilePath is the document to load.
	FilePath string

	// DocID and DocName default to the file stem.
	DocID   string
	DocName string

	Source  string
	Version string

	ChunkSize    int
	Overlap      int
	MinChunkSize int
	BatchSize    int

	// DryRun segments the document without embedding or mutating the index.
	DryRun bool

	// ReplaceSource deletes every point of Source before inserting.
	ReplaceSource bool
}

// IngestReport summarises a file ingest.
type IngestReport struct {
	FilePath                  string  `json:"filePath"`
	DocID                     string  `json:"docId"`
	DocName                   string  `json:"docName"`
	Source                    string  `json:"source"`
	Version                   string  `json:"version"`
	TotalPages                int     `json:"totalPages"`
	TotalChunks               int     `json:"totalChunks"`
	Inserted                  int     `json:"inserted"`
	Updated                   int     `json:"updated"`
	Skipped                   int     `json:"skipped"`
	EstimatedTokens           int     `json:"estimatedTokens"`
	EstimatedEmbeddingCostUSD float64 `json:"estimatedEmbeddingCostUsd"`
	DurationMs                float64 `json:"durationMs"`
	SourceDocsDeleted         int     `json:"sourceDocsDeleted"`
	DryRun                    bool    `json:"dryRun"`
}
