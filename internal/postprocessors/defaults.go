package postprocessors

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/hasher"
)

// RegisterDefaults registers the segmenter ("chunker") and the identity
// hasher ("hasher").
func RegisterDefaults(r *Registry) error {
	if err := r.Register("chunker", buildChunker); err != nil {
		return err
	}
	return r.Register("hasher", buildHasher)
}

// DefaultRegistry returns a registry holding the built-in processors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registering into an empty registry cannot collide.
	_ = RegisterDefaults(r)
	return r
}

// buildChunker reads chunk_size, overlap and min_chunk_size. Missing keys
// keep the chunker defaults; invalid combinations fail here, before any
// document is processed.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option
	if size, ok := intSetting(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := intSetting(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	if minSize, ok := intSetting(cfg, "min_chunk_size"); ok {
		opts = append(opts, chunker.WithMinChunkSize(minSize))
	}

	p := chunker.New(opts...)
	if err := p.Params().Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildHasher(map[string]any) (driven.PostProcessor, error) {
	return hasher.New(), nil
}

func intSetting(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
