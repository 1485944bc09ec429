// Package domain defines the core entities of the retrieval pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document, Chunk, PageSpan: ingestion units and their provenance
//   - ChunkCandidate: a retrieved chunk carrying index and rerank scores
//   - RunConfig, RunOverrides: per-run pipeline configuration
//   - Evaluation, Answer: pipeline output and its derived status
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
