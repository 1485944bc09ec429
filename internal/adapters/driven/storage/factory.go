// Package storage selects the vector index backend from settings.
package storage

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// NewVectorIndex opens the backend named by settings.Backend. No network
// round trip is made; call Ping to check connectivity.
func NewVectorIndex(ctx context.Context, settings domain.VectorStoreSettings) (driven.VectorIndex, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: vector backend %q is not configured", domain.ErrConfiguration, settings.Backend)
	}

	var (
		idx driven.VectorIndex
		err error
	)
	switch settings.Backend {
	case domain.VectorBackendQdrant:
		idx, err = openQdrant(settings)
	case domain.VectorBackendPgvector:
		idx, err = openPgvector(ctx, settings)
	case domain.VectorBackendSQLite:
		idx, err = openSQLite(settings)
	case domain.VectorBackendMemory:
		idx = memory.NewVectorIndex()
	default:
		return nil, fmt.Errorf("%w: unsupported vector backend %q", domain.ErrConfiguration, settings.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", settings.Backend, err)
	}
	return idx, nil
}

func openQdrant(settings domain.VectorStoreSettings) (driven.VectorIndex, error) {
	idx, err := qdrant.New(qdrant.Config{
		URL:        settings.URL,
		APIKey:     settings.APIKey,
		Collection: settings.Collection,
		Timeout:    settings.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func openPgvector(ctx context.Context, settings domain.VectorStoreSettings) (driven.VectorIndex, error) {
	idx, err := pgvector.New(ctx, pgvector.Config{
		DSN:     settings.DSN,
		Table:   settings.Collection,
		Timeout: settings.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func openSQLite(settings domain.VectorStoreSettings) (driven.VectorIndex, error) {
	idx, err := sqlite.Open(settings.Path)
	if err != nil {
		return nil, err
	}
	return idx, nil
}
