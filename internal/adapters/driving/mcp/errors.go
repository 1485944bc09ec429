// Package mcp provides an MCP (Model Context Protocol) server adapter for
// sercha-rag. It lets AI assistants ask grounded questions, ingest text or
// files and run threshold sweeps.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("mcp: answer service is required")

// ErrServiceUnavailable is returned by tools whose port was not provided.
var ErrServiceUnavailable = errors.New("mcp: service not available")

// toolError prefixes err with its machine-readable code so assistants can
// tell caller mistakes from backend failures.
func toolError(err error) error {
	return fmt.Errorf("%s: %w", domain.ErrorCode(err), err)
}
