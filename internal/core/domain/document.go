package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Document is a unit of ingestion: the flattened text of a file or a
// caller-supplied body, together with the identity stored on every point.
type Document struct {
	// ID is the stable document identifier used in point hashes.
	ID string

	// Name is the display name of the document (file stem for PDFs).
	Name string

	// Source is the logical collection the document belongs to.
	Source string

	// Version tags a generation of the source.
	Version string

	// Title is the human-readable title.
	Title string

	// Content is the full text content before chunking.
	Content string

	// PageSpans maps ranges of Content back to 1-based pages.
	// Empty for documents without page structure.
	PageSpans []PageSpan

	// Metadata contains arbitrary key-value pairs copied onto each point.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last ingested.
	UpdatedAt time.Time
}

// PageText is the extracted text of a single page.
type PageText struct {
	// Page is the 1-based page number.
	Page int

	// Text is the cleaned page text.
	Text string
}

// PageSpan records the character range [Start, End) of a page inside a
// flattened document. Offsets count Unicode code points.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

// PageSeparator joins consecutive pages in a flattened document.
const PageSeparator = "\n\n"

// FlattenPages joins pages with PageSeparator and returns the text with the
// span each page occupies in it.
func FlattenPages(pages []PageText) (string, []PageSpan) {
	var b strings.Builder
	spans := make([]PageSpan, 0, len(pages))
	cursor := 0
	for i, p := range pages {
		if i > 0 {
			b.WriteString(PageSeparator)
			cursor += utf8.RuneCountInString(PageSeparator)
		}
		start := cursor
		b.WriteString(p.Text)
		cursor += utf8.RuneCountInString(p.Text)
		spans = append(spans, PageSpan{Page: p.Page, Start: start, End: cursor})
	}
	return b.String(), spans
}

// Chunk represents a segment of a document's normalized text.
// Chunks are immutable once created.
type Chunk struct {
	// ID is the deterministic point identifier (assigned by the hasher).
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the zero-based ordinal within the document. Indices are
	// contiguous after empty segments are dropped.
	Index int

	// Text is the segment text, trimmed.
	Text string

	// NormalizedText is the text used for hashing.
	NormalizedText string

	// StartChar is the inclusive start offset into the normalized document.
	StartChar int

	// EndChar is the exclusive end offset into the normalized document.
	EndChar int

	// PageStart is the first page the segment overlaps, nil without page data.
	PageStart *int

	// PageEnd is the last page the segment overlaps, nil without page data.
	PageEnd *int

	// TextHash is the hex content hash identifying this chunk's content.
	TextHash string
}
