package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend identifies the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendQdrant is a Qdrant server reached over gRPC.
	VectorBackendQdrant VectorBackend = "qdrant"

	// VectorBackendPgvector is PostgreSQL with the pgvector extension.
	VectorBackendPgvector VectorBackend = "pgvector"

	// VectorBackendSQLite is a local SQLite file with exact cosine search.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendMemory keeps points in process memory. Useful for tests
	// and dry runs.
	VectorBackendMemory VectorBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendQdrant, VectorBackendPgvector, VectorBackendSQLite, VectorBackendMemory:
		return true
	default:
		return false
	}
}

// IsRemote returns true if the backend is reached over the network.
func (b VectorBackend) IsRemote() bool {
	return b == VectorBackendQdrant || b == VectorBackendPgvector
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b VectorBackend) Description() string {
	switch b {
	case VectorBackendQdrant:
		return "Qdrant (gRPC)"
	case VectorBackendPgvector:
		return "PostgreSQL + pgvector"
	case VectorBackendSQLite:
		return "SQLite (local, exact search)"
	case VectorBackendMemory:
		return "In-memory (ephemeral)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size every embedding must have.
	Dimensions int

	// BatchSize is the number of texts sent per embedding call.
	BatchSize int

	// MaxRetries is the number of retries after a failed batch.
	MaxRetries int

	// RequestsPerSecond throttles embedding calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorStoreSettings holds vector index configuration.
type VectorStoreSettings struct {
	// Backend selects the index implementation.
	Backend VectorBackend

	// URL is the Qdrant gRPC address (host:port).
	URL string

	// APIKey authenticates against Qdrant Cloud.
	APIKey string

	// Collection is the collection or table holding points.
	Collection string

	// Timeout bounds each index call.
	Timeout time.Duration

	// DSN is the PostgreSQL connection string for pgvector.
	DSN string

	// Path is the SQLite database file.
	Path string
}

// IsConfigured returns true if the backend has what it needs to connect.
func (v VectorStoreSettings) IsConfigured() bool {
	switch v.Backend {
	case VectorBackendQdrant:
		return v.URL != "" && v.Collection != ""
	case VectorBackendPgvector:
		return v.DSN != "" && v.Collection != ""
	case VectorBackendSQLite:
		return v.Path != ""
	case VectorBackendMemory:
		return true
	default:
		return false
	}
}

// ChunkingSettings holds segmenter parameters.
type ChunkingSettings struct {
	ChunkSize    int `json:"chunkSize"`
	Overlap      int `json:"overlap"`
	MinChunkSize int `json:"minChunkSize"`
}

// IngestSettings holds defaults applied to ingested documents.
type IngestSettings struct {
	DefaultSource  string
	DefaultVersion string
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string

	// RequestTimeout bounds a whole answer run.
	RequestTimeout time.Duration

	// DebugEndpoints exposes diagnostic routes.
	DebugEndpoints bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorStore VectorStoreSettings
	Chunking    ChunkingSettings
	Retrieval   RunConfig
	Ingest      IngestSettings
	Server      ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Credentials are left empty and must come from the config file or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOpenAI,
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  64,
			MaxRetries: 4,
		},
		LLM: LLMSettings{
			Provider: AIProviderOpenAI,
			Model:    "gpt-4.1-mini",
		},
		VectorStore: VectorStoreSettings{
			Backend:    VectorBackendQdrant,
			URL:        "localhost:6334",
			Collection: "rag_documents",
			Timeout:    20 * time.Second,
		},
		Chunking: ChunkingSettings{
			ChunkSize:    1000,
			Overlap:      150,
			MinChunkSize: 300,
		},
		Retrieval: DefaultRunConfig(),
		Ingest: IngestSettings{
			DefaultSource:  "consultorio_juridico",
			DefaultVersion: "v1",
		},
		Server: ServerSettings{
			Addr:           ":8080",
			RequestTimeout: 60 * time.Second,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllVectorBackends returns all available vector backends.
func AllVectorBackends() []VectorBackend {
	return []VectorBackend{
		VectorBackendQdrant,
		VectorBackendPgvector,
		VectorBackendSQLite,
		VectorBackendMemory,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4.1-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor returns the ingest pipeline for the given chunking
// parameters: segment, then hash.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "hasher"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size":     c.ChunkSize,
				"overlap":        c.Overlap,
				"min_chunk_size": c.MinChunkSize,
			},
		},
	}
}

// MaskAPIKey hides all but the first and last four characters of a
// credential. Short or empty keys are fully masked.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
