package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AnswerService answers questions from indexed evidence.
type AnswerService interface {
	// Answer validates the request, runs the pipeline under the configured
	// end-to-end timeout and derives the answer status.
	Answer(ctx context.Context, req domain.AnswerRequest, correlationID string) (*domain.Answer, error)

	// Evaluate runs the pipeline with explicit filters and overrides and
	// returns the raw evaluation including metrics.
	Evaluate(ctx context.Context, query string, filters map[string]any, overrides *domain.RunOverrides) (*domain.Evaluation, error)
}
