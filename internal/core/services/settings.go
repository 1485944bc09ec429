package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyEmbedMaxRetries = "embedding.max_retries"
	keyEmbedRPS        = "embedding.requests_per_second"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"

	keyVectorBackend    = "vector.backend"
	keyVectorURL        = "vector.url"
	keyVectorAPIKey     = "vector.api_key"
	keyVectorCollection = "vector.collection"
	keyVectorTimeout    = "vector.timeout_seconds"
	keyVectorDSN        = "vector.dsn"
	keyVectorPath       = "vector.path"

	keyChunkSize    = "chunking.chunk_size"
	keyChunkOverlap = "chunking.overlap"
	keyChunkMin     = "chunking.min_chunk_size"

	keyCandidateTopK = "retrieval.candidate_topk"
	keyFinalK        = "retrieval.final_k"
	keyThreshold     = "retrieval.score_threshold"
	keyRerankMode    = "retrieval.rerank_mode"
	keyRerankEnabled = "retrieval.rerank_enabled"
	keyTemperature   = "retrieval.temperature"
	keySourceFilter  = "retrieval.source_filter"
	keyVersionFilter = "retrieval.version_filter"

	keyIngestSource  = "ingest.default_source"
	keyIngestVersion = "ingest.default_version"

	keyServerAddr    = "server.addr"
	keyServerTimeout = "server.request_timeout_seconds"
	keyServerDebug   = "server.debug_endpoints"
)

// Environment variables that override stored settings.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIModel     = "OPENAI_MODEL"
	EnvEmbedModel      = "RAG_EMBED_MODEL"
	EnvEmbedDim        = "RAG_EMBED_DIM"
	EnvEmbedBatchSize  = "RAG_EMBED_BATCH_SIZE"
	EnvEmbedMaxRetries = "RAG_EMBED_MAX_RETRIES"
	EnvQdrantURL       = "QDRANT_URL"
	EnvQdrantAPIKey    = "QDRANT_API_KEY"
	EnvQdrantColl      = "QDRANT_COLLECTION"
	EnvQdrantTimeout   = "QDRANT_TIMEOUT_S"
	EnvChunkSize       = "RAG_INGEST_CHUNK_SIZE"
	EnvChunkOverlap    = "RAG_INGEST_CHUNK_OVERLAP"
	EnvMinChunkSize    = "RAG_INGEST_MIN_CHUNK_SIZE"
	EnvIngestSource    = "RAG_INGEST_SOURCE"
	EnvIngestVersion   = "RAG_INGEST_VERSION"
	EnvRerankEnabled   = "RAG_RERANK_ENABLED"
	EnvCandidateTopK   = "RAG_CANDIDATE_TOPK"
	EnvFinalK          = "RAG_FINAL_K"
	EnvScoreThreshold  = "RAG_SCORE_THRESHOLD"
	EnvRerankMode      = "RAG_RERANK_MODE"
	EnvFilterSource    = "RAG_FILTER_SOURCE"
	EnvFilterVersion   = "RAG_FILTER_VERSION"
	EnvTemperature     = "RAG_TEMPERATURE"
	EnvVectorBackend   = "RAG_VECTOR_BACKEND"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvDebugEndpoints  = "RAG_DEBUG_ENDPOINTS"
)

// defaultOllamaURL is assigned when a local provider has no base URL.
const defaultOllamaURL = "http://localhost:11434"

// EnvLookup resolves an environment variable.
type EnvLookup func(key string) (string, bool)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	probe       driven.ProviderProbe
	lookupEnv   EnvLookup
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnvLookup replaces os.LookupEnv for environment overrides.
func WithEnvLookup(lookup EnvLookup) SettingsOption {
	return func(s *SettingsService) {
		s.lookupEnv = lookup
	}
}

// NewSettingsService creates a new settings service.
func NewSettingsService(
	configStore driven.ConfigStore, probe driven.ProviderProbe, opts ...SettingsOption,
) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		probe:       probe,
		lookupEnv:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves current application settings. Stored values override the
// defaults and environment variables override both.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.stored()
	if err := s.applyEnv(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// stored reads the persisted settings without environment overrides.
func (s *SettingsService) stored() *domain.AppSettings {
	d := domain.DefaultAppSettings()

	return &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			MaxRetries:        s.getInt(keyEmbedMaxRetries, d.Embedding.MaxRetries),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		VectorStore: domain.VectorStoreSettings{
			Backend:    s.getBackend(d.VectorStore.Backend),
			URL:        s.getString(keyVectorURL, d.VectorStore.URL),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
			Collection: s.getString(keyVectorCollection, d.VectorStore.Collection),
			Timeout:    s.getSeconds(keyVectorTimeout, d.VectorStore.Timeout),
			DSN:        s.configStore.GetString(keyVectorDSN),
			Path:       s.configStore.GetString(keyVectorPath),
		},
		Chunking: domain.ChunkingSettings{
			ChunkSize:    s.getInt(keyChunkSize, d.Chunking.ChunkSize),
			Overlap:      s.getInt(keyChunkOverlap, d.Chunking.Overlap),
			MinChunkSize: s.getInt(keyChunkMin, d.Chunking.MinChunkSize),
		},
		Retrieval: domain.RunConfig{
			CandidateTopK:  s.getInt(keyCandidateTopK, d.Retrieval.CandidateTopK),
			FinalK:         s.getInt(keyFinalK, d.Retrieval.FinalK),
			ScoreThreshold: s.getFloat(keyThreshold, d.Retrieval.ScoreThreshold),
			RerankMode:     s.getRerankMode(d.Retrieval.RerankMode),
			RerankEnabled:  s.getBool(keyRerankEnabled, d.Retrieval.RerankEnabled),
			Temperature:    s.getFloat(keyTemperature, d.Retrieval.Temperature),
			SourceFilter:   s.configStore.GetString(keySourceFilter),
			VersionFilter:  s.configStore.GetString(keyVersionFilter),
		},
		Ingest: domain.IngestSettings{
			DefaultSource:  s.getString(keyIngestSource, d.Ingest.DefaultSource),
			DefaultVersion: s.getString(keyIngestVersion, d.Ingest.DefaultVersion),
		},
		Server: domain.ServerSettings{
			Addr:           s.getString(keyServerAddr, d.Server.Addr),
			RequestTimeout: s.getSeconds(keyServerTimeout, d.Server.RequestTimeout),
			DebugEndpoints: s.getBool(keyServerDebug, d.Server.DebugEndpoints),
		},
	}
}

// applyEnv overlays environment variables on settings.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) error {
	e := envReader{lookup: s.lookupEnv}

	if key, ok := e.str(EnvOpenAIAPIKey); ok {
		if settings.Embedding.Provider == domain.AIProviderOpenAI {
			settings.Embedding.APIKey = key
		}
		if settings.LLM.Provider == domain.AIProviderOpenAI {
			settings.LLM.APIKey = key
		}
	}
	if key, ok := e.str(EnvAnthropicAPIKey); ok && settings.LLM.Provider == domain.AIProviderAnthropic {
		settings.LLM.APIKey = key
	}
	e.setString(EnvOpenAIModel, &settings.LLM.Model)
	e.setString(EnvEmbedModel, &settings.Embedding.Model)
	e.setInt(EnvEmbedDim, &settings.Embedding.Dimensions)
	e.setInt(EnvEmbedBatchSize, &settings.Embedding.BatchSize)
	e.setInt(EnvEmbedMaxRetries, &settings.Embedding.MaxRetries)

	if v, ok := e.str(EnvVectorBackend); ok {
		backend := domain.VectorBackend(strings.ToLower(v))
		if !backend.IsValid() {
			e.fail(EnvVectorBackend, v)
		}
		settings.VectorStore.Backend = backend
	}
	e.setString(EnvQdrantURL, &settings.VectorStore.URL)
	e.setString(EnvQdrantAPIKey, &settings.VectorStore.APIKey)
	e.setString(EnvQdrantColl, &settings.VectorStore.Collection)
	e.setSeconds(EnvQdrantTimeout, &settings.VectorStore.Timeout)
	e.setString(EnvDatabaseURL, &settings.VectorStore.DSN)

	e.setInt(EnvChunkSize, &settings.Chunking.ChunkSize)
	e.setInt(EnvChunkOverlap, &settings.Chunking.Overlap)
	e.setInt(EnvMinChunkSize, &settings.Chunking.MinChunkSize)
	e.setString(EnvIngestSource, &settings.Ingest.DefaultSource)
	e.setString(EnvIngestVersion, &settings.Ingest.DefaultVersion)

	e.setBool(EnvRerankEnabled, &settings.Retrieval.RerankEnabled)
	e.setInt(EnvCandidateTopK, &settings.Retrieval.CandidateTopK)
	e.setInt(EnvFinalK, &settings.Retrieval.FinalK)
	e.setFloat(EnvScoreThreshold, &settings.Retrieval.ScoreThreshold)
	e.setFloat(EnvTemperature, &settings.Retrieval.Temperature)
	if v, ok := e.str(EnvRerankMode); ok {
		settings.Retrieval.RerankMode = domain.RerankMode(strings.ToLower(v))
	}
	e.setString(EnvFilterSource, &settings.Retrieval.SourceFilter)
	e.setString(EnvFilterVersion, &settings.Retrieval.VersionFilter)

	e.setBool(EnvDebugEndpoints, &settings.Server.DebugEndpoints)

	return e.err
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedMaxRetries, settings.Embedding.MaxRetries},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyVectorBackend, settings.VectorStore.Backend.String()},
		{keyVectorURL, settings.VectorStore.URL},
		{keyVectorCollection, settings.VectorStore.Collection},
		{keyVectorTimeout, settings.VectorStore.Timeout.Seconds()},
		{keyVectorDSN, settings.VectorStore.DSN},
		{keyVectorPath, settings.VectorStore.Path},
		{keyChunkSize, settings.Chunking.ChunkSize},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkMin, settings.Chunking.MinChunkSize},
		{keyCandidateTopK, settings.Retrieval.CandidateTopK},
		{keyFinalK, settings.Retrieval.FinalK},
		{keyThreshold, settings.Retrieval.ScoreThreshold},
		{keyRerankMode, settings.Retrieval.RerankMode.String()},
		{keyRerankEnabled, settings.Retrieval.RerankEnabled},
		{keyTemperature, settings.Retrieval.Temperature},
		{keySourceFilter, settings.Retrieval.SourceFilter},
		{keyVersionFilter, settings.Retrieval.VersionFilter},
		{keyIngestSource, settings.Ingest.DefaultSource},
		{keyIngestVersion, settings.Ingest.DefaultVersion},
		{keyServerAddr, settings.Server.Addr},
		{keyServerTimeout, settings.Server.RequestTimeout.Seconds()},
		{keyServerDebug, settings.Server.DebugEndpoints},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are written only when set.
	secrets := map[string]string{
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyVectorAPIKey: settings.VectorStore.APIKey,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings := s.stored()
	settings.Embedding.Provider = provider

	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// The index must be rebuilt at the model's native size.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings := s.stored()
	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetVectorBackend configures the vector index backend. target is the
// Qdrant address, the PostgreSQL DSN or the SQLite path depending on backend.
func (s *SettingsService) SetVectorBackend(backend domain.VectorBackend, target string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid vector backend: %s", domain.ErrInvalidInput, backend)
	}

	settings := s.stored()
	settings.VectorStore.Backend = backend

	switch backend {
	case domain.VectorBackendQdrant:
		if target != "" {
			settings.VectorStore.URL = target
		}
	case domain.VectorBackendPgvector:
		if target == "" {
			return fmt.Errorf("%w: pgvector requires a connection string", domain.ErrInvalidInput)
		}
		settings.VectorStore.DSN = target
	case domain.VectorBackendSQLite:
		if target != "" {
			settings.VectorStore.Path = target
		}
	case domain.VectorBackendMemory:
	}

	return s.Save(settings)
}

// Validate checks that current settings can serve ingest and answer runs.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s is not configured", domain.ErrConfiguration, settings.Embedding.Provider)
	}
	if settings.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be > 0", domain.ErrConfiguration)
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %s is not configured", domain.ErrConfiguration, settings.LLM.Provider)
	}
	if !settings.VectorStore.IsConfigured() {
		return fmt.Errorf("%w: vector backend %s is not configured", domain.ErrConfiguration, settings.VectorStore.Backend.Description())
	}
	if err := settings.Retrieval.Validate(); err != nil {
		return fmt.Errorf("%w: retrieval: %v", domain.ErrConfiguration, err)
	}
	c := settings.Chunking
	if c.ChunkSize <= 0 || c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk size %d with overlap %d", domain.ErrConfiguration, c.ChunkSize, c.Overlap)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ProbeEmbedding pings the effective embedding provider. Without a probe
// it always succeeds.
func (s *SettingsService) ProbeEmbedding(ctx context.Context) error {
	if s.probe == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.probe.ProbeEmbedding(ctx, &settings.Embedding)
}

// ProbeLLM pings the effective LLM provider.
func (s *SettingsService) ProbeLLM(ctx context.Context) error {
	if s.probe == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.probe.ProbeLLM(ctx, &settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	secs := s.getFloat(key, 0)
	if secs <= 0 {
		return defaultVal
	}
	return time.Duration(secs * float64(time.Second))
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getRerankMode(defaultVal domain.RerankMode) domain.RerankMode {
	mode := domain.RerankMode(s.configStore.GetString(keyRerankMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

// envReader parses environment overrides, keeping the first failure.
type envReader struct {
	lookup EnvLookup
	err    error
}

func (e *envReader) str(key string) (string, bool) {
	if e.lookup == nil {
		return "", false
	}
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, value string) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: invalid value %q for %s", domain.ErrConfiguration, value, key)
	}
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.str(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.str(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v)
		return
	}
	*dst = n
}

func (e *envReader) setFloat(key string, dst *float64) {
	v, ok := e.str(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v)
		return
	}
	*dst = f
}

func (e *envReader) setSeconds(key string, dst *time.Duration) {
	var secs float64
	e.setFloat(key, &secs)
	if secs > 0 {
		*dst = time.Duration(secs * float64(time.Second))
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := e.str(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.fail(key, v)
	}
}
