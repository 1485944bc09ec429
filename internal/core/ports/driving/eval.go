package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EvalService sweeps score thresholds over a question set.
type EvalService interface {
	Run(ctx context.Context, questions []string, opts domain.EvalOptions) (*domain.EvalResult, error)
}
