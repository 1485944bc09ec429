package services

import (
	"context"
	"net/url"
	"regexp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure DiagnosticsService implements the interface.
var _ driving.DiagnosticsService = (*DiagnosticsService)(nil)

// DiagnosticsService reports the effective backend configuration and
// whether the vector index answers.
type DiagnosticsService struct {
	settings domain.AppSettings
	index    driven.VectorIndex
}

// NewDiagnosticsService creates a diagnostics service. index may be nil.
func NewDiagnosticsService(settings domain.AppSettings, index driven.VectorIndex) *DiagnosticsService {
	return &DiagnosticsService{settings: settings, index: index}
}

// Check builds the report and pings the index.
func (s *DiagnosticsService) Check(ctx context.Context) driving.Diagnostics {
	vs := s.settings.VectorStore
	d := driving.Diagnostics{
		VectorBackend:    vs.Backend.String(),
		VectorTarget:     vectorTarget(vs),
		Collection:       vs.Collection,
		APIKeyConfigured: vs.APIKey != "",
		TimeoutSeconds:   vs.Timeout.Seconds(),
		EmbeddingModel:   s.settings.Embedding.Model,
		EmbeddingDims:    s.settings.Embedding.Dimensions,
		LLMModel:         s.settings.LLM.Model,
	}

	if s.index == nil {
		d.PingError = domain.ErrVectorIndexUnavailable.Error()
		return d
	}
	if err := s.index.Ping(ctx); err != nil {
		d.PingError = err.Error()
		return d
	}
	d.Ping = true
	return d
}

// vectorTarget describes where the index lives without leaking credentials.
func vectorTarget(vs domain.VectorStoreSettings) string {
	switch vs.Backend {
	case domain.VectorBackendQdrant:
		return vs.URL
	case domain.VectorBackendPgvector:
		return RedactDSN(vs.DSN)
	case domain.VectorBackendSQLite:
		return vs.Path
	default:
		return ""
	}
}

var dsnPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// RedactDSN masks the password of a PostgreSQL URL or key/value connection string.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}xxxxx")
}
