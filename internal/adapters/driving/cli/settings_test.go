package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestDescribeKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty key",
			input:    "",
			expected: "(not set)",
		},
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, describeKey(tt.input))
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsShow(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.APIKey = "sk-proj-1234567890abcdef"
	settings.VectorStore.Backend = domain.VectorBackendPgvector
	settings.VectorStore.DSN = "postgres://rag:secret@db:5432/rag"
	useTestContainer(t, &container{settings: &mockSettingsService{settings: settings}})

	out, err := executeCommand(t, "", "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "API Key: sk-p...cdef")
	assert.NotContains(t, out, "sk-proj-1234567890abcdef")
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "PostgreSQL + pgvector")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_ValidationWarning(t *testing.T) {
	useTestContainer(t, &container{settings: &mockSettingsService{
		settings:    domain.DefaultAppSettings(),
		validateErr: errors.New("embedding provider openai is not configured"),
	}})

	out, err := executeCommand(t, "", "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: embedding provider openai is not configured")
}

func TestSettingsVector_Args(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultAppSettings()}
	useTestContainer(t, &container{settings: svc})

	out, err := executeCommand(t, "", "settings", "vector", "SQLite", "/tmp/rag.db")

	require.NoError(t, err)
	assert.Equal(t, domain.VectorBackendSQLite, svc.backend)
	assert.Equal(t, "/tmp/rag.db", svc.target)
	assert.Contains(t, out, "Vector backend configured")
}

func TestSettingsVector_Interactive(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultAppSettings()}
	useTestContainer(t, &container{settings: svc})

	_, err := executeCommand(t, "1\nqdrant.internal:6334\n", "settings", "vector")

	require.NoError(t, err)
	assert.Equal(t, domain.VectorBackendQdrant, svc.backend)
	assert.Equal(t, "qdrant.internal:6334", svc.target)
}

func TestSettingsLLM_Interactive(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultAppSettings()}
	useTestContainer(t, &container{settings: svc})

	// Anthropic, default model, API key.
	out, err := executeCommand(t, "3\n\nsk-ant-key\n", "settings", "llm")

	require.NoError(t, err)
	assert.True(t, svc.setLLMCalled)
	assert.Equal(t, domain.AIProviderAnthropic, svc.provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], svc.model)
	assert.Equal(t, "sk-ant-key", svc.apiKey)
	assert.Contains(t, out, "OK")
}

func TestSettingsEmbedding_LocalNeedsNoKey(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultAppSettings()}
	useTestContainer(t, &container{settings: svc})

	_, err := executeCommand(t, "1\nmxbai-embed-large\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, svc.provider)
	assert.Equal(t, "mxbai-embed-large", svc.model)
	assert.Empty(t, svc.apiKey)
}

func TestSettingsEmbedding_ValidationFails(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultAppSettings(), pingErr: errors.New("connection refused")}
	useTestContainer(t, &container{settings: svc})

	out, err := executeCommand(t, "1\n\n", "settings", "embedding")

	require.Error(t, err)
	assert.Contains(t, out, "FAILED: connection refused")
}

func TestSettingsEmbedding_MissingKey(t *testing.T) {
	useTestContainer(t, &container{settings: &mockSettingsService{settings: domain.DefaultAppSettings()}})

	_, err := executeCommand(t, "2\n\n\n", "settings", "embedding")
	assert.Error(t, err)
}
