// Package chunker provides a boundary-aware text segmenting processor.
package chunker

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// DefaultMinChunkSize is the default minimum boundary-seeking chunk length.
const DefaultMinChunkSize = 300

// Processor splits document content into chunks with page provenance.
// It implements the PostProcessor interface.
type Processor struct {
	params Params
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.params.ChunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.params.Overlap = overlap
	}
}

// WithMinChunkSize sets the minimum chunk size in characters.
func WithMinChunkSize(size int) Option {
	return func(p *Processor) {
		p.params.MinChunkSize = size
	}
}

// New creates a new chunker processor with the given options.
// Parameters are validated when a document is processed.
func New(opts ...Option) *Processor {
	p := &Processor{
		params: Params{
			ChunkSize:    DefaultChunkSize,
			Overlap:      DefaultChunkOverlap,
			MinChunkSize: DefaultMinChunkSize,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Params returns the segmentation parameters.
func (p *Processor) Params() Params {
	return p.params
}

// Process segments the document content.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	chunks, err := Segment(doc.Content, doc.PageSpans, p.params)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	return chunks, nil
}
