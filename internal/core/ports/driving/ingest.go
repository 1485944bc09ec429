package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestService indexes documents into the vector index.
type IngestService interface {
	// IngestText replaces the points of req.Source with the chunks of req.Text.
	IngestText(ctx context.Context, req domain.IngestRequest) (*domain.IngestResponse, error)

	// IngestFile loads, segments, embeds and upserts a file.
	IngestFile(ctx context.Context, opts domain.IngestOptions) (*domain.IngestReport, error)
}
