package driven

import "context"

// VectorIndex stores chunk points and answers nearest-neighbour queries.
// All methods are safe for concurrent use.
type VectorIndex interface {
	// EnsureCollection creates the collection for vectors of size dims when
	// missing and prepares payload indexes on the filterable fields.
	EnsureCollection(ctx context.Context, dims int) error

	// Query returns at most q.TopK hits ordered by descending score.
	Query(ctx context.Context, q VectorQuery) ([]VectorHit, error)

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Delete removes every point matching filter.
	Delete(ctx context.Context, filter Filter) error

	// Count returns the number of points matching filter.
	Count(ctx context.Context, filter Filter) (int, error)

	// Ping validates the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Filter is a set of conjunctive equality predicates over payload fields.
// Values are strings, integers or booleans.
type Filter map[string]any

// VectorQuery describes a similarity query.
type VectorQuery struct {
	Vector []float32
	TopK   int
	Filter Filter

	// WithVectors asks the backend to return stored vectors.
	WithVectors bool
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the point identifier.
	ID string

	// Score is the cosine similarity reported by the backend.
	Score float64

	// Payload holds the stored fields, decoded into plain Go values.
	Payload map[string]any

	// Vector is the stored vector, nil unless requested.
	Vector []float32
}

// Point is a vector with its payload, keyed by ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Matches reports whether payload satisfies every predicate of f. Numbers
// compare by value regardless of their Go type.
func (f Filter) Matches(payload map[string]any) bool {
	for key, want := range f {
		got, ok := payload[key]
		if !ok || !filterValueEqual(got, want) {
			return false
		}
	}
	return true
}

func filterValueEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
