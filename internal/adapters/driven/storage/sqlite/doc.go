// Package sqlite provides a VectorIndex stored in a single SQLite file.
//
// It uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. Vectors are stored as little-endian float32 blobs next to a JSON
// payload. Queries filter rows with json_extract and rank the survivors by
// exact cosine similarity in Go, which suits corpora of a few hundred
// thousand chunks.
//
// # Schema
//
// The schema is managed through numbered migrations embedded from the
// migrations/ directory and recorded in schema_migrations.
//
// # Thread Safety
//
// All operations are safe for concurrent use; SQLite runs in WAL mode with
// a busy timeout.
package sqlite
