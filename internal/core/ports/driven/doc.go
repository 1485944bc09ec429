// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - VectorIndex: Point storage and similarity search (Qdrant, pgvector, SQLite)
//   - ConfigStore: Application configuration
//   - PostProcessor: Chunk production (segmenting, hashing)
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation and the rerank judge. Without it only
//     dry runs are possible and llm rerank falls back to cosine.
//   - DocumentLoader: File ingestion. Text ingest works without it.
//   - PromptStore: Prompt overrides. Built-in prompts are used without it.
//   - ProviderProbe: Connectivity checks when providers are configured.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
