package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingBatch indicates a batch of texts could not be embedded
	// after all retries were exhausted.
	ErrEmbeddingBatch = errors.New("embedding batch failed")

	// ErrIndexBackend indicates the vector index rejected or failed an operation.
	ErrIndexBackend = errors.New("vector index backend error")

	// ErrGeneration indicates the final answer could not be generated.
	ErrGeneration = errors.New("generation failed")

	// ErrTimeout indicates a run exceeded its end-to-end deadline.
	ErrTimeout = errors.New("upstream timeout")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation and the LLM rerank judge are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrUnsupportedType indicates an unknown provider or backend type.
	ErrUnsupportedType = errors.New("unsupported type")
)

// EmbeddingBatchError reports a batch that failed after every retry.
type EmbeddingBatchError struct {
	// Batch is the zero-based batch number.
	Batch int

	// Attempts is the number of attempts made, including the first.
	Attempts int

	// Err is the last underlying failure.
	Err error
}

func (e *EmbeddingBatchError) Error() string {
	return fmt.Sprintf("embedding batch %d failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *EmbeddingBatchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEmbeddingBatch.
func (e *EmbeddingBatchError) Is(target error) bool { return target == ErrEmbeddingBatch }

// IndexBackendError wraps a failure from the vector index.
type IndexBackendError struct {
	// Op names the index operation, e.g. "query" or "upsert".
	Op string

	Err error
}

func (e *IndexBackendError) Error() string {
	return fmt.Sprintf("vector index %s: %v", e.Op, e.Err)
}

func (e *IndexBackendError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIndexBackend.
func (e *IndexBackendError) Is(target error) bool { return target == ErrIndexBackend }

// GenerationError wraps a failure of the final generation call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// TimeoutError reports that a run hit its end-to-end deadline.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream timeout after %s", e.After)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Machine-readable error codes exposed by the HTTP and MCP surfaces.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConfig       = "CONFIG_ERROR"
	CodeIndexBackend = "INDEX_BACKEND_ERROR"
	CodeEmbedding    = "EMBEDDING_ERROR"
	CodeGeneration   = "GENERATION_ERROR"
	CodeTimeout      = "UPSTREAM_TIMEOUT"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorCode maps an error to its machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrInvalidInput):
		return CodeValidation
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrEmbeddingUnavailable), errors.Is(err, ErrLLMUnavailable),
		errors.Is(err, ErrVectorIndexUnavailable):
		// An unset key or endpoint leaves the service unwired.
		return CodeConfig
	case errors.Is(err, ErrEmbeddingBatch):
		return CodeEmbedding
	case errors.Is(err, ErrIndexBackend):
		return CodeIndexBackend
	case errors.Is(err, ErrGeneration):
		return CodeGeneration
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// IsClientError reports whether err was caused by the caller rather than
// by a backend or the process itself.
func IsClientError(err error) bool {
	switch ErrorCode(err) {
	case CodeValidation, CodeConfig, CodeNotFound:
		return true
	default:
		return false
	}
}
