package ingestion

import (
	"strings"
	"testing"
)

func TestChunkShortPassthrough(t *testing.T) {
	t.Parallel()
	c := NewChunker(400, 50)
	got := c.Chunk("short note")
	if len(got) != 1 || got[0] != "short note" {
		t.Errorf("short input should pass through: %v", got)
	}
}

func TestChunkEmpty(t *testing.T) {
	t.Parallel()
	c := NewChunker(400, 50)
	if got := c.Chunk("   \n "); got != nil {
		t.Errorf("whitespace should yield nil, got %v", got)
	}
}

func TestChunkRespectsSize(t *testing.T) {
	t.Parallel()
	c := NewChunker(100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("long text should split, got %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		// Overlap may push a chunk slightly past Size, never past Size+Overlap.
		if len(ch) > c.Size+c.Overlap {
			t.Errorf("chunk %d length %d exceeds %d", i, len(ch), c.Size+c.Overlap)
		}
	}
}

func TestChunkPrefersParagraphBoundaries(t *testing.T) {
	t.Parallel()
	c := NewChunker(80, 0)
	para1 := strings.Repeat("alpha ", 10)
	para2 := strings.Repeat("bravo ", 10)
	chunks := c.Chunk(para1 + "\n\n" + para2)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "bravo") || strings.Contains(chunks[1], "alpha") {
		t.Errorf("paragraphs mixed: %v", chunks)
	}
}

func TestChunkHardCutOnUnbrokenText(t *testing.T) {
	t.Parallel()
	c := NewChunker(64, 0)
	text := strings.Repeat("x", 200)
	chunks := c.Chunk(text)
	total := 0
	for _, ch := range chunks {
		if len(ch) > 64 {
			t.Errorf("chunk length = %d, want <= 64", len(ch))
		}
		total += len(ch)
	}
	if total != 200 {
		t.Errorf("content lost: total = %d, want 200", total)
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	t.Parallel()
	c := NewChunker(0, -1)
	if c.Size != DefaultChunkSize || c.Overlap != DefaultChunkOverlap {
		t.Errorf("defaults = %d/%d", c.Size, c.Overlap)
	}
	// Overlap at or above size is clamped.
	c = NewChunker(100, 100)
	if c.Overlap >= c.Size {
		t.Errorf("overlap %d should be clamped below size %d", c.Overlap, c.Size)
	}
}
