package ingestion

import "strings"

// Chunker splits parent text into small child chunks for embedding. It
// tries progressively finer separators (paragraphs, lines, sentences,
// words) so chunks break at natural boundaries before falling back to a
// hard character cut.
type Chunker struct {
	// Size is the maximum chunk length in characters.
	Size int
	// Overlap is the number of trailing characters repeated at the start
	// of the next chunk.
	Overlap int
}

// minChunkableLength is the length below which content is passed through
// as a single chunk rather than split.
const minChunkableLength = 50

// Default chunking parameters.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 50
)

// separators, coarsest first. The empty string means a hard cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// NewChunker returns a Chunker, substituting defaults for non-positive
// parameters.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into chunks of at most c.Size characters. Short inputs
// come back as a single chunk; whitespace-only inputs yield nothing.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) < minChunkableLength {
		return []string{text}
	}

	pieces := c.split(text, 0)

	// Merge adjacent pieces back up toward Size, carrying Overlap between
	// consecutive chunks.
	var chunks []string
	var buf strings.Builder
	for _, piece := range pieces {
		if buf.Len() > 0 && buf.Len()+1+len(piece) > c.Size {
			chunk := strings.TrimSpace(buf.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			buf.Reset()
			if c.Overlap > 0 && len(chunk) > c.Overlap {
				buf.WriteString(chunk[len(chunk)-c.Overlap:])
			}
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(piece)
	}
	if chunk := strings.TrimSpace(buf.String()); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// split recursively breaks text into pieces no longer than c.Size, using
// the separator at depth sep and recursing to finer separators for pieces
// that are still too long.
func (c *Chunker) split(text string, sep int) []string {
	if len(text) <= c.Size {
		return []string{text}
	}
	if sep >= len(separators) || separators[sep] == "" {
		// Hard cut.
		var out []string
		for start := 0; start < len(text); start += c.Size {
			end := start + c.Size
			if end > len(text) {
				end = len(text)
			}
			out = append(out, text[start:end])
		}
		return out
	}

	var out []string
	for _, part := range strings.Split(text, separators[sep]) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) > c.Size {
			out = append(out, c.split(part, sep+1)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}
