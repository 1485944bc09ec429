// Package pgvector provides a VectorIndex backed by PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// DefaultTimeout bounds each statement.
const DefaultTimeout = 10 * time.Second

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config holds connection settings.
type Config struct {
	// DSN is a PostgreSQL connection string.
	DSN string

	// Table holds the points. It must be a plain identifier.
	Table string

	// Timeout bounds each statement.
	Timeout time.Duration
}

// querier is the subset of *pgxpool.Pool the index uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
}

// VectorIndex stores points as rows of (id, embedding, payload jsonb).
// Filters use jsonb containment; scores are 1 - cosine distance.
type VectorIndex struct {
	pool    *pgxpool.Pool
	db      querier
	table   string
	timeout time.Duration
}

// New opens a connection pool. Connectivity is checked by Ping.
func New(ctx context.Context, cfg Config) (*VectorIndex, error) {
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", cfg.Table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: create pool: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &VectorIndex{
		pool:    pool,
		db:      pool,
		table:   pgx.Identifier{cfg.Table}.Sanitize(),
		timeout: timeout,
	}, nil
}

// EnsureCollection creates the extension, table and indexes. An existing
// table whose embedding column has another size is an error.
func (v *VectorIndex) EnsureCollection(ctx context.Context, dims int) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	for _, stmt := range schemaStatements(v.table, dims) {
		if _, err := v.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("prepare schema: %w", err)
		}
	}

	var existing int
	err := v.db.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		v.table).Scan(&existing)
	if err != nil {
		return fmt.Errorf("inspect embedding column: %w", err)
	}
	if existing > 0 && existing != dims {
		return fmt.Errorf("table %s has %d dimensions, embeddings have %d", v.table, existing, dims)
	}
	return nil
}

// schemaStatements returns the idempotent DDL for table.
func schemaStatements(table string, dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}'::jsonb
)`, table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (payload jsonb_path_ops)`,
			indexName(table, "payload"), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			indexName(table, "embedding"), table),
	}
}

// indexName derives a quoted index identifier from a quoted table name.
func indexName(quotedTable, suffix string) string {
	bare := quotedTable[1 : len(quotedTable)-1]
	return pgx.Identifier{bare + "_" + suffix + "_idx"}.Sanitize()
}

// Query orders rows by cosine distance to the query vector.
func (v *VectorIndex) Query(ctx context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	filter, err := filterJSON(q.Filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	rows, err := v.db.Query(ctx, querySQL(v.table, q.WithVectors),
		pgvector.NewVector(q.Vector), filter, max(q.TopK, 0))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", v.table, err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var (
			hit     driven.VectorHit
			payload []byte
			vec     pgvector.Vector
		)
		dest := []any{&hit.ID, &hit.Score, &payload}
		if q.WithVectors {
			dest = append(dest, &vec)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal(payload, &hit.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", hit.ID, err)
		}
		if q.WithVectors {
			hit.Vector = vec.Slice()
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", v.table, err)
	}
	return hits, nil
}

func querySQL(table string, withVectors bool) string {
	cols := "id, 1 - (embedding <=> $1) AS score, payload::text"
	if withVectors {
		cols += ", embedding"
	}
	return fmt.Sprintf(`SELECT %s FROM %s WHERE payload @> $2::jsonb ORDER BY embedding <=> $1 LIMIT $3`, cols, table)
}

// Upsert writes all points in one batch.
func (v *VectorIndex) Upsert(ctx context.Context, points []driven.Point) error {
	if len(points) == 0 {
		return nil
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, v.table)

	batch := &pgx.Batch{}
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", p.ID, err)
		}
		batch.Queue(stmt, p.ID, pgvector.NewVector(p.Vector), string(payload))
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	results := v.db.SendBatch(ctx, batch)
	for range points {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert into %s: %w", v.table, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("upsert into %s: %w", v.table, err)
	}
	logger.Debug("pgvector upserted %d points into %s", len(points), v.table)
	return nil
}

// Delete removes rows whose payload contains filter.
func (v *VectorIndex) Delete(ctx context.Context, f driven.Filter) error {
	filter, err := filterJSON(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if _, err := v.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE payload @> $1::jsonb`, v.table), filter); err != nil {
		return fmt.Errorf("delete from %s: %w", v.table, err)
	}
	return nil
}

// Count returns the number of rows whose payload contains filter.
func (v *VectorIndex) Count(ctx context.Context, f driven.Filter) (int, error) {
	filter, err := filterJSON(f)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var n int
	if err := v.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE payload @> $1::jsonb`, v.table), filter).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", v.table, err)
	}
	return n, nil
}

// Ping checks the database is reachable.
func (v *VectorIndex) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := v.db.Ping(ctx); err != nil {
		return fmt.Errorf("pgvector: ping: %w", err)
	}
	return nil
}

// Close closes the pool.
func (v *VectorIndex) Close() error {
	if v.pool != nil {
		v.pool.Close()
	}
	return nil
}

// filterJSON renders filter as a jsonb containment document. A nil filter
// renders as {} which every payload contains.
func filterJSON(f driven.Filter) (string, error) {
	if f == nil {
		return "{}", nil
	}
	for key, value := range f {
		switch value.(type) {
		case string, bool, int, int32, int64, float64:
		default:
			return "", fmt.Errorf("%w: filter %s: unsupported value %v (%T)", domain.ErrInvalidInput, key, value, value)
		}
	}
	data, err := json.Marshal(map[string]any(f))
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return string(data), nil
}
