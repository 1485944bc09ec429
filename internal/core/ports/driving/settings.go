package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, with environment
	// overrides applied.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetVectorBackend configures the vector index backend.
	SetVectorBackend(backend domain.VectorBackend, target string) error

	// Validate checks that current settings can serve ingest and answer runs.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ProbeEmbedding pings the effective embedding provider.
	ProbeEmbedding(ctx context.Context) error

	// ProbeLLM pings the effective LLM provider.
	ProbeLLM(ctx context.Context) error
}
