package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex using
// exact cosine search. Contents are lost when the process exits.
type VectorIndex struct {
	mu     sync.RWMutex
	dims   int
	points map[string]driven.Point
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		points: make(map[string]driven.Point),
	}
}

// EnsureCollection fixes the vector size on first use.
func (v *VectorIndex) EnsureCollection(_ context.Context, dims int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dims == 0 {
		v.dims = dims
		return nil
	}
	if v.dims != dims {
		return fmt.Errorf("memory: collection has dimension %d, requested %d", v.dims, dims)
	}
	return nil
}

// Query returns the topK points closest to q.Vector that match q.Filter.
func (v *VectorIndex) Query(_ context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(v.points))
	for _, p := range v.points {
		if !q.Filter.Matches(p.Payload) {
			continue
		}
		hit := driven.VectorHit{ID: p.ID, Score: cosine(q.Vector, p.Vector), Payload: copyPayload(p.Payload)}
		if q.WithVectors {
			hit.Vector = append([]float32(nil), p.Vector...)
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if q.TopK > 0 && len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

// Upsert inserts or replaces points by ID.
func (v *VectorIndex) Upsert(_ context.Context, points []driven.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range points {
		if v.dims > 0 && len(p.Vector) != v.dims {
			return fmt.Errorf("memory: point %s has dimension %d, want %d", p.ID, len(p.Vector), v.dims)
		}
		v.points[p.ID] = driven.Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: copyPayload(p.Payload),
		}
	}
	return nil
}

// Delete removes every point matching filter.
func (v *VectorIndex) Delete(_ context.Context, filter driven.Filter) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, p := range v.points {
		if filter.Matches(p.Payload) {
			delete(v.points, id)
		}
	}
	return nil
}

// Count returns the number of points matching filter.
func (v *VectorIndex) Count(_ context.Context, filter driven.Filter) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, p := range v.points {
		if filter.Matches(p.Payload) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (v *VectorIndex) Ping(_ context.Context) error {
	return nil
}

// Close releases resources (no-op for memory index).
func (v *VectorIndex) Close() error {
	return nil
}

func copyPayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, val := range p {
		out[k] = val
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
