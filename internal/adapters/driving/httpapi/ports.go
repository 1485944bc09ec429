package httpapi

import (
	"errors"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("httpapi: answer service is required")

// Ports aggregates the driving ports the HTTP server calls.
type Ports struct {
	// Answer runs the RAG pipeline.
	Answer driving.AnswerService

	// Ingest indexes raw text. Optional; without it the ingest route
	// answers with a configuration error.
	Ingest driving.IngestService

	// Diagnostics backs the env-check route. Optional.
	Diagnostics driving.DiagnosticsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
