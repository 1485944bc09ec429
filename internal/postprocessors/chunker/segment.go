package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Params controls segmentation. All sizes count Unicode code points.
type Params struct {
	// ChunkSize is the target segment length.
	ChunkSize int

	// Overlap is the number of characters shared by consecutive segments.
	Overlap int

	// MinChunkSize is the shortest segment produced by boundary seeking
	// before falling back to a fixed-size cut.
	MinChunkSize int
}

// Validate checks the parameter bounds.
func (p Params) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be > 0, got %d", domain.ErrInvalidInput, p.ChunkSize)
	}
	if p.Overlap < 0 || p.Overlap >= p.ChunkSize {
		return fmt.Errorf("%w: overlap must be within [0, %d), got %d", domain.ErrInvalidInput, p.ChunkSize, p.Overlap)
	}
	return nil
}

// Segment splits text into overlapping chunks that end on natural
// boundaries where possible. Page spans are given in rune offsets of text
// and are projected onto the normalized text to annotate each chunk.
func Segment(text string, spans []domain.PageSpan, p Params) ([]domain.Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	norm, origin := normalize(text)
	n := len(norm)
	if n == 0 {
		return nil, nil
	}
	pages := projectSpans(spans, origin)

	chunks := make([]domain.Chunk, 0, n/(p.ChunkSize-p.Overlap)+1)
	start := 0
	for start < n {
		targetEnd := min(start+p.ChunkSize, n)
		hardEnd := min(start+p.ChunkSize+p.ChunkSize*15/100, n)

		end := findSplit(norm, start, targetEnd, hardEnd)
		if end <= start {
			end = min(start+p.ChunkSize, n)
		}

		body := strings.TrimSpace(string(norm[start:end]))
		if utf8.RuneCountInString(body) < p.MinChunkSize && end < n {
			end = min(start+p.ChunkSize, n)
			body = strings.TrimSpace(string(norm[start:end]))
		}

		if body != "" {
			pageStart, pageEnd := pageRange(pages, start, end)
			chunks = append(chunks, domain.Chunk{
				Index:          len(chunks),
				Text:           body,
				NormalizedText: body,
				StartChar:      start,
				EndChar:        end,
				PageStart:      pageStart,
				PageEnd:        pageEnd,
			})
		}

		if end >= n {
			break
		}
		next := max(0, end-p.Overlap)
		if next <= start {
			// Overlap would stall the window; continue from the boundary.
			next = end
		}
		start = next
	}

	return chunks, nil
}

// Normalize returns text with line-wrap hyphenation removed, every
// whitespace run folded to one space and the ends trimmed.
func Normalize(text string) string {
	norm, _ := normalize(text)
	return string(norm)
}

// normalize returns the normalized runes and, for each of them, the rune
// offset in text it came from.
func normalize(text string) ([]rune, []int) {
	in := []rune(text)
	out := make([]rune, 0, len(in))
	origin := make([]int, 0, len(in))

	pendingSpace := -1
	for i := 0; i < len(in); i++ {
		r := in[i]

		if r == '-' && i+1 < len(in) && (in[i+1] == '\n' || in[i+1] == '\r') {
			i++
			if in[i] == '\r' && i+1 < len(in) && in[i+1] == '\n' {
				i++
			}
			continue
		}

		if unicode.IsSpace(r) {
			if len(out) > 0 && pendingSpace < 0 {
				pendingSpace = i
			}
			continue
		}

		if pendingSpace >= 0 {
			out = append(out, ' ')
			origin = append(origin, pendingSpace)
			pendingSpace = -1
		}
		out = append(out, r)
		origin = append(origin, i)
	}

	return out, origin
}

// findSplit picks the split position in (start, hardEnd] closest to
// targetEnd. Sentence ends are preferred over line breaks, line breaks
// over any whitespace. Without candidates it cuts at hardEnd.
func findSplit(text []rune, start, targetEnd, hardEnd int) int {
	window := text[start:hardEnd]

	var sentences, lines, spaces []int
	for i, r := range window {
		switch {
		case (r == '.' || r == '!' || r == '?') && i+1 < len(window) && unicode.IsSpace(window[i+1]):
			sentences = append(sentences, i)
		case r == '\n':
			lines = append(lines, i)
		}
		if unicode.IsSpace(r) {
			spaces = append(spaces, i)
		}
	}

	candidates := sentences
	if len(candidates) == 0 {
		candidates = lines
	}
	if len(candidates) == 0 {
		candidates = spaces
	}
	if len(candidates) == 0 {
		return hardEnd
	}

	best := -1
	bestDist := 0
	for _, c := range candidates {
		pos := start + c + 1
		dist := pos - targetEnd
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = pos, dist
		}
	}
	return best
}

// projectSpans maps spans from input offsets onto normalized offsets.
func projectSpans(spans []domain.PageSpan, origin []int) []domain.PageSpan {
	if len(spans) == 0 {
		return nil
	}
	toNorm := func(offset int) int {
		return sort.SearchInts(origin, offset)
	}
	out := make([]domain.PageSpan, 0, len(spans))
	for _, s := range spans {
		out = append(out, domain.PageSpan{Page: s.Page, Start: toNorm(s.Start), End: toNorm(s.End)})
	}
	return out
}

// pageRange returns the lowest and highest page overlapping [start, end).
func pageRange(spans []domain.PageSpan, start, end int) (*int, *int) {
	first, last, found := 0, 0, false
	for _, s := range spans {
		if s.Start >= end || start >= s.End {
			continue
		}
		if !found || s.Page < first {
			first = s.Page
		}
		if !found || s.Page > last {
			last = s.Page
		}
		found = true
	}
	if !found {
		return nil, nil
	}
	return &first, &last
}
