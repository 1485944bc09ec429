// Package hasher assigns content-derived identities to chunks.
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Processor sets TextHash and a deterministic point ID on every chunk so
// re-ingesting identical content overwrites the same points.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a hasher processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "hasher"
}

// Process hashes the chunks produced by earlier processors.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.DocumentID = doc.ID
		c.TextHash = TextHash(doc.ID, c.Index, c.NormalizedText)
		c.ID = PointID(c.TextHash)
		out[i] = c
	}
	return out, nil
}

// TextHash returns the hex SHA-256 of docID|index|normalizedText.
func TextHash(docID string, index int, normalizedText string) string {
	sum := sha256.Sum256([]byte(docID + "|" + strconv.Itoa(index) + "|" + normalizedText))
	return hex.EncodeToString(sum[:])
}

// PointID derives a UUIDv5 in the URL namespace from a text hash.
func PointID(textHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(textHash)).String()
}
