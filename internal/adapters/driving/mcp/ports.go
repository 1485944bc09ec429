package mcp

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer runs the RAG pipeline.
	Answer driving.AnswerService

	// Ingest indexes text and files.
	Ingest driving.IngestService

	// Eval sweeps score thresholds.
	Eval driving.EvalService

	// Settings backs the settings resource.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	// Ingest, Eval and Settings are optional; their tools report
	// ErrServiceUnavailable.
	return nil
}
