// Package chunker splits document text into overlapping windows sized for
// embedding. Splitting prefers natural boundaries (paragraph break, then line
// break, then word boundary) and falls back to fixed-width cuts.
package chunker

import (
	"github.com/bull/rag-search/internal/domain"
)

const (
	// DefaultSize is the target chunk length in characters.
	DefaultSize = 700
	// DefaultOverlap is the number of trailing characters repeated at the
	// start of the following chunk.
	DefaultOverlap = 250
)

// separators in preference order. The empty-string fallback is implicit:
// when none matches, the cut is a hard character cut.
var separators = []string{"\n\n", "\n", " "}

// Chunker produces overlapping chunks of at most Size characters where the
// trailing Overlap characters of each chunk reappear at the start of the
// next. Deterministic for a given (document, size, overlap).
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker with the given size and overlap. Out-of-range values
// (size <= 0, overlap < 0, overlap >= size) fall back to the defaults.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 3
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits the document into ordered chunks, each carrying a copy of the
// document's provenance. An empty document yields no chunks.
func (c *Chunker) Chunk(doc domain.Document) []domain.Chunk {
	spans := c.split([]rune(doc.Text))
	if len(spans) == 0 {
		return nil
	}
	runes := []rune(doc.Text)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Text:       string(runes[s[0]:s[1]]),
			Source:     doc.Source,
			Page:       doc.Page,
			Section:    doc.Section,
		})
	}
	return chunks
}

// split returns [start, end) rune offsets for each chunk. Windows are laid
// out so that the next chunk always starts exactly overlap runes before the
// previous cut, which keeps the overlap region byte-identical across the
// pair. A natural boundary is only accepted past start+overlap so the next
// start always advances.
func (c *Chunker) split(runes []rune) [][2]int {
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return [][2]int{{0, len(runes)}}
	}
	var spans [][2]int
	start := 0
	for {
		end := start + c.size
		clamped := end >= len(runes)
		if clamped {
			end = len(runes)
		} else {
			end = c.boundary(runes, start, end)
		}
		spans = append(spans, [2]int{start, end})

		var next int
		if clamped {
			// The window ran past the end; keep the fixed stride so
			// short tails still overlap their predecessor.
			next = start + (c.size - c.overlap)
		} else {
			next = end - c.overlap
		}
		if next >= len(runes) {
			return spans
		}
		start = next
	}
}

// boundary moves the cut at end back to the latest natural boundary in
// (start+overlap, end], trying each separator class in preference order.
// With no usable boundary the hard cut stands.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	floor := start + c.overlap // cut must stay past this to make progress
	for _, sep := range separators {
		if cut := lastCut(runes, floor, end, []rune(sep)); cut > 0 {
			return cut
		}
	}
	return end
}

// lastCut returns the largest i in (floor, hi] such that sep ends at i, or
// -1 when no occurrence fits.
func lastCut(runes []rune, floor, hi int, sep []rune) int {
	for i := hi; i-len(sep) >= 0 && i > floor; i-- {
		if matchAt(runes, i-len(sep), sep) {
			return i
		}
	}
	return -1
}

func matchAt(runes []rune, at int, sep []rune) bool {
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}
