package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ProviderProbe checks that provider settings reach a working service
// before they are relied on. Unconfigured settings pass.
type ProviderProbe interface {
	ProbeEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
	ProbeLLM(ctx context.Context, settings *domain.LLMSettings) error
}
