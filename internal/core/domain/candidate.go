package domain

// ChunkCandidate is a chunk returned by a similarity query. Candidates are
// request scoped and never persisted.
type ChunkCandidate struct {
	// ChunkID is the point identifier in the vector index.
	ChunkID string

	Source  string
	Version string
	Title   string

	// ChunkIndex is the chunk's ordinal within its document.
	ChunkIndex int

	// Text is the chunk text stored on the point.
	Text string

	Metadata map[string]any

	// IndexScore is the native similarity score reported by the index.
	IndexScore float64

	// Embedding is the stored chunk vector, only populated when requested.
	Embedding []float32

	PageStart *int
	PageEnd   *int

	// RerankScore is set by the reranker and dominates IndexScore once set.
	RerankScore *float64
}

// Score returns the rerank score when set, else the index score.
func (c ChunkCandidate) Score() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.IndexScore
}

// WithRerankScore returns a copy of the candidate carrying the given rerank score.
func (c ChunkCandidate) WithRerankScore(score float64) ChunkCandidate {
	c.RerankScore = &score
	return c
}
