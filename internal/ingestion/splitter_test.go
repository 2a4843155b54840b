package ingestion

import (
	"strings"
	"testing"

	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

const sampleDoc = `# Project Handbook

Intro paragraph about the project.

## Budget

Spending rules for all teams.

| Item | Cost |
| --- | --- |
| Cement | 15000 |
| Steel | 22000 |

Notes after the table.

## Site Photos

![Crane on site](images/crane.png)

### Details

More detail text.
`

func TestSplitMarkdownSections(t *testing.T) {
	t.Parallel()
	chunks := SplitMarkdown(sampleDoc)

	var sections []string
	for _, c := range chunks {
		sections = append(sections, c.Section+"/"+c.NodeType)
	}

	want := []string{
		"Project Handbook/text",
		"Project Handbook > Budget/text",
		"Project Handbook > Budget/table",
		"Project Handbook > Budget/text",
		"Project Handbook > Site Photos/image",
		"Project Handbook > Site Photos > Details/text",
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d: %v", len(chunks), len(want), sections)
	}
	for i, w := range want {
		if sections[i] != w {
			t.Errorf("chunk %d = %q, want %q", i, sections[i], w)
		}
	}
}

func TestSplitMarkdownKeepsHeaders(t *testing.T) {
	t.Parallel()
	chunks := SplitMarkdown(sampleDoc)
	if !strings.Contains(chunks[0].Content, "# Project Handbook") {
		t.Errorf("header should stay in content: %q", chunks[0].Content)
	}
}

func TestSplitMarkdownTableBoundaries(t *testing.T) {
	t.Parallel()
	chunks := SplitMarkdown(sampleDoc)

	var table *ParentChunk
	for i := range chunks {
		if chunks[i].NodeType == store.NodeTable {
			table = &chunks[i]
		}
	}
	if table == nil {
		t.Fatal("no table chunk found")
	}
	if !strings.Contains(table.Content, "Cement") || !strings.Contains(table.Content, "22000") {
		t.Errorf("table rows missing: %q", table.Content)
	}
	if strings.Contains(table.Content, "Spending rules") || strings.Contains(table.Content, "Notes after") {
		t.Errorf("surrounding text leaked into table: %q", table.Content)
	}
}

func TestSplitMarkdownHeaderLevelReset(t *testing.T) {
	t.Parallel()
	doc := "# A\ntext a\n### Deep\ndeep text\n## B\ntext b\n"
	chunks := SplitMarkdown(doc)

	var sections []string
	for _, c := range chunks {
		sections = append(sections, c.Section)
	}
	want := []string{"A", "A > Deep", "A > B"}
	for i, w := range want {
		if sections[i] != w {
			t.Errorf("section %d = %q, want %q", i, sections[i], w)
		}
	}
}

func TestSplitMarkdownNoHeaders(t *testing.T) {
	t.Parallel()
	chunks := SplitMarkdown("just some text\nwith two lines\n")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Section != "No Header" {
		t.Errorf("section = %q, want No Header", chunks[0].Section)
	}
	if chunks[0].NodeType != store.NodeText {
		t.Errorf("type = %q, want text", chunks[0].NodeType)
	}
}

func TestSplitMarkdownEmpty(t *testing.T) {
	t.Parallel()
	if chunks := SplitMarkdown("   \n\n  "); len(chunks) != 0 {
		t.Errorf("whitespace document should yield no chunks, got %d", len(chunks))
	}
}

func TestParseImage(t *testing.T) {
	t.Parallel()
	alt, url, ok := parseImage("![Crane on site](images/crane.png)")
	if !ok || alt != "Crane on site" || url != "images/crane.png" {
		t.Errorf("parseImage = %q, %q, %v", alt, url, ok)
	}
	if _, _, ok := parseImage("not an image"); ok {
		t.Error("parseImage should fail on plain text")
	}
}
