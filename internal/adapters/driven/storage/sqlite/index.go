package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

const metaDimensions = "dimensions"

var filterKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VectorIndex is an exact-search vector index in a SQLite file.
type VectorIndex struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies migrations.
// An empty path uses ~/.sercha-rag/data/index.db.
func Open(path string) (*VectorIndex, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sercha-rag", "data", "index.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent upserts.
	db.SetMaxOpenConns(1)

	v := &VectorIndex{db: db, path: path}
	if err := v.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return v, nil
}

// Path returns the database file path.
func (v *VectorIndex) Path() string {
	return v.path
}

// migrate applies every NNN_name.up.sql newer than the recorded version.
func (v *VectorIndex) migrate(fsys fs.FS) error {
	if _, err := v.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := v.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := v.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := v.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// EnsureCollection records the vector size on first use and rejects a
// different size afterwards.
func (v *VectorIndex) EnsureCollection(ctx context.Context, dims int) error {
	var stored string
	err := v.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", metaDimensions).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = v.db.ExecContext(ctx, "INSERT INTO index_meta (key, value) VALUES (?, ?)", metaDimensions, strconv.Itoa(dims))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading dimensions: %w", err)
	}

	existing, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt dimensions value %q: %w", stored, err)
	}
	if existing != dims {
		return fmt.Errorf("index has %d dimensions, embeddings have %d", existing, dims)
	}
	return nil
}

// Query scans the rows matching the filter and ranks them by cosine similarity.
func (v *VectorIndex) Query(ctx context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	where, args, err := whereClause(q.Filter)
	if err != nil {
		return nil, err
	}

	rows, err := v.db.QueryContext(ctx, "SELECT id, embedding, payload FROM points"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var (
			id      string
			blob    []byte
			payload string
		)
		if err := rows.Scan(&id, &blob, &payload); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		vec := bytesToFloat32Slice(blob)
		hit := driven.VectorHit{ID: id, Score: cosine(q.Vector, vec)}
		if err := json.Unmarshal([]byte(payload), &hit.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload of %s: %w", id, err)
		}
		if q.WithVectors {
			hit.Vector = vec
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
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

// Upsert writes points in one transaction.
func (v *VectorIndex) Upsert(ctx context.Context, points []driven.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (id, embedding, payload, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			embedding = excluded.embedding,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload of %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, float32SliceToBytes(p.Vector), string(payload)); err != nil {
			return fmt.Errorf("upserting %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// Delete removes points matching filter.
func (v *VectorIndex) Delete(ctx context.Context, filter driven.Filter) error {
	where, args, err := whereClause(filter)
	if err != nil {
		return err
	}
	if _, err := v.db.ExecContext(ctx, "DELETE FROM points"+where, args...); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Count returns the number of points matching filter.
func (v *VectorIndex) Count(ctx context.Context, filter driven.Filter) (int, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	var n int
	if err := v.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return n, nil
}

// Ping checks the database file is usable.
func (v *VectorIndex) Ping(ctx context.Context) error {
	return v.db.PingContext(ctx)
}

// Close closes the database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// whereClause renders filter as json_extract equality predicates. Keys are
// sorted so identical filters produce identical SQL.
func whereClause(filter driven.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !filterKeyPattern.MatchString(k) {
			return "", nil, fmt.Errorf("%w: invalid filter key %q", domain.ErrInvalidInput, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		val, err := sqlValue(filter[k])
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %w", k, err)
		}
		conds = append(conds, "json_extract(payload, ?) = ?")
		args = append(args, "$."+k, val)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// sqlValue maps a filter value to what json_extract returns for it.
func sqlValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t == math.Trunc(t) {
			return int64(t), nil
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value %v (%T)", domain.ErrInvalidInput, v, v)
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
