package driving

import "context"

// DiagnosticsService reports the effective backend configuration and
// connectivity.
type DiagnosticsService interface {
	Check(ctx context.Context) Diagnostics
}

// Diagnostics is a point-in-time environment report. Secrets are never
// included, only whether they are set.
type Diagnostics struct {
	VectorBackend    string  `json:"vectorBackend"`
	VectorTarget     string  `json:"vectorTarget"`
	Collection       string  `json:"collection"`
	APIKeyConfigured bool    `json:"apiKeyConfigured"`
	TimeoutSeconds   float64 `json:"timeoutSeconds"`
	EmbeddingModel   string  `json:"embeddingModel"`
	EmbeddingDims    int     `json:"embeddingDims"`
	LLMModel         string  `json:"llmModel"`
	Ping             bool    `json:"ping"`
	PingError        string  `json:"pingError,omitempty"`
}
