package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// DefaultEmbedBatchSize is the number of texts sent per embedding call.
const DefaultEmbedBatchSize = 64

// BatchEmbedder embeds texts in fixed-size batches with retries,
// preserving input order.
type BatchEmbedder struct {
	service   driven.EmbeddingService
	batchSize int
	dims      int
	retry     RetryPolicy
	limiter   *rate.Limiter
}

// EmbedderOption configures a BatchEmbedder.
type EmbedderOption func(*BatchEmbedder)

// WithBatchSize sets the number of texts per call.
func WithBatchSize(n int) EmbedderOption {
	return func(e *BatchEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithDimensions sets the expected vector size.
func WithDimensions(dims int) EmbedderOption {
	return func(e *BatchEmbedder) {
		if dims > 0 {
			e.dims = dims
		}
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) EmbedderOption {
	return func(e *BatchEmbedder) {
		e.retry = p
	}
}

// WithRateLimit throttles embedding calls to rps requests per second.
func WithRateLimit(rps float64) EmbedderOption {
	return func(e *BatchEmbedder) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewBatchEmbedder creates an embedder over service. Dimensions default to
// the service's configured size.
func NewBatchEmbedder(service driven.EmbeddingService, opts ...EmbedderOption) *BatchEmbedder {
	e := &BatchEmbedder{
		service:   service,
		batchSize: DefaultEmbedBatchSize,
		dims:      service.Dimensions(),
		retry:     DefaultRetryPolicy(4),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions returns the vector size every result is validated against.
func (e *BatchEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the underlying embedding model.
func (e *BatchEmbedder) ModelName() string {
	return e.service.ModelName()
}

// EmbedTexts returns one vector per text, in input order.
func (e *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for batch, start := 0, 0; start < len(texts); batch, start = batch+1, start+e.batchSize {
		end := min(start+e.batchSize, len(texts))

		var result [][]float32
		attempts, err := e.retry.Do(ctx, func(attempt int) error {
			var err error
			result, err = e.embedOnce(ctx, texts[start:end])
			if err != nil {
				logger.Warn("embedding batch %d attempt %d failed: %v", batch, attempt, err)
			}
			return err
		})
		if err != nil {
			return nil, &domain.EmbeddingBatchError{Batch: batch, Attempts: attempts, Err: err}
		}
		vectors = append(vectors, result...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single query with one attempt.
func (e *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, &domain.EmbeddingBatchError{Batch: 0, Attempts: 1, Err: fmt.Errorf("embed query: %w", err)}
	}
	return vectors[0], nil
}

// embedOnce performs a single capability call and validates the response.
func (e *BatchEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	items, err := e.service.EmbedBatch(ctx, texts, e.dims)
	if err != nil {
		return nil, err
	}
	if len(items) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(items))
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })

	out := make([][]float32, len(items))
	for i, item := range items {
		if item.Index != i {
			return nil, fmt.Errorf("embedding index %d missing or duplicated", i)
		}
		if e.dims > 0 && len(item.Vector) != e.dims {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dims, len(item.Vector))
		}
		out[i] = item.Vector
	}
	return out, nil
}
