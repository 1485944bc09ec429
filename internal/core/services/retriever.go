package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// CandidateRetriever queries the vector index and decodes hits into
// typed candidates.
type CandidateRetriever struct {
	index driven.VectorIndex
}

// NewCandidateRetriever creates a retriever over index.
func NewCandidateRetriever(index driven.VectorIndex) *CandidateRetriever {
	return &CandidateRetriever{index: index}
}

// Retrieve returns at most topK candidates ordered by descending index score.
// Nil filter values are ignored.
func (r *CandidateRetriever) Retrieve(
	ctx context.Context, vector []float32, topK int, filters map[string]any, includeEmbeddings bool,
) ([]domain.ChunkCandidate, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be > 0, got %d", domain.ErrInvalidInput, topK)
	}

	var filter driven.Filter
	for k, v := range filters {
		if v == nil {
			continue
		}
		if filter == nil {
			filter = driven.Filter{}
		}
		filter[k] = v
	}

	hits, err := r.index.Query(ctx, driven.VectorQuery{
		Vector:      vector,
		TopK:        topK,
		Filter:      filter,
		WithVectors: includeEmbeddings,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, fmt.Errorf("vector index query: %w", err)
		}
		return nil, &domain.IndexBackendError{Op: "query", Err: err}
	}

	if len(hits) > topK {
		hits = hits[:topK]
	}
	candidates := make([]domain.ChunkCandidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, decodeHit(hit, includeEmbeddings))
	}
	logger.Debug("Retrieved %d candidates (topK=%d, filters=%v)", len(candidates), topK, filter)
	return candidates, nil
}

// decodeHit converts a raw hit into a candidate, tolerating loosely typed payloads.
func decodeHit(hit driven.VectorHit, includeEmbeddings bool) domain.ChunkCandidate {
	p := hit.Payload
	c := domain.ChunkCandidate{
		ChunkID:    hit.ID,
		Source:     payloadString(p, "source"),
		Version:    payloadString(p, "version"),
		Title:      payloadString(p, "title"),
		IndexScore: hit.Score,
		PageStart:  payloadOptInt(p, "pageStart"),
		PageEnd:    payloadOptInt(p, "pageEnd"),
	}
	if c.Title == "" {
		c.Title = payloadString(p, "docName")
	}
	c.Text = payloadString(p, "chunkText")
	if c.Text == "" {
		c.Text = payloadString(p, "text")
	}
	if idx := payloadOptInt(p, "chunkIndex"); idx != nil {
		c.ChunkIndex = *idx
	}
	if meta, ok := p["metadata"].(map[string]any); ok {
		c.Metadata = meta
	}
	if includeEmbeddings && len(hit.Vector) > 0 {
		c.Embedding = hit.Vector
	}
	return c
}

func payloadString(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// payloadOptInt decodes any numeric or numeric-string value.
func payloadOptInt(p map[string]any, key string) *int {
	var n int
	switch v := p[key].(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case uint32:
		n = int(v)
	case uint64:
		n = int(v)
	case float32:
		n = int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n = int(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		n = int(parsed)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		n = int(parsed)
	default:
		return nil
	}
	return &n
}
