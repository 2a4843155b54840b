// Package ingestion implements the document ingestion pipeline. Markdown
// documents are split along headers into typed parent nodes (text, table,
// image), each parent is broken into small searchable child chunks, the
// chunks are embedded, and everything lands in the store plus the child
// vector index. This pipeline backs the `docroute ingest` CLI command and
// the ingestion API endpoint.
package ingestion

import (
	"regexp"
	"strings"

	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// ParentChunk is one typed section of a split document, before persistence.
type ParentChunk struct {
	// Section is the header path of the chunk, e.g. "Safety > Equipment".
	Section string
	// NodeType is one of store.NodeText, store.NodeTable, store.NodeImage.
	NodeType string
	// Content is the raw markdown of the chunk, headers included.
	Content string
}

// noHeader labels content that appears before the first header.
const noHeader = "No Header"

var (
	headerRe    = regexp.MustCompile(`^(#{1,5})\s+(.*)$`)
	imageLineRe = regexp.MustCompile(`^!\[.*?\]\(.*?\)`)
	tableLineRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)
)

// SplitMarkdown splits a markdown document into typed parent chunks. The
// document is first divided at headers (levels 1 through 5, headers kept in
// the content), then each section is separated so that tables and images
// become their own chunks rather than being buried inside prose.
func SplitMarkdown(content string) []ParentChunk {
	var out []ParentChunk

	// Header path by level; deeper levels reset when a shallower header
	// appears.
	var headers [5]string
	var section []string
	flush := func() {
		if len(section) == 0 {
			return
		}
		body := strings.Join(section, "\n")
		section = nil
		out = append(out, splitSection(body, headerPath(headers))...)
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			headers[level-1] = strings.TrimSpace(m[2])
			for i := level; i < len(headers); i++ {
				headers[i] = ""
			}
			section = append(section, line)
			continue
		}
		section = append(section, line)
	}
	flush()

	return out
}

// headerPath joins the active header levels into a readable section label.
func headerPath(headers [5]string) string {
	var parts []string
	for _, h := range headers {
		if h != "" {
			parts = append(parts, h)
		}
	}
	if len(parts) == 0 {
		return noHeader
	}
	return strings.Join(parts, " > ")
}

// splitSection separates one section's content into text, table, and image
// chunks. Image lines always stand alone; consecutive table lines form one
// table chunk; everything else accumulates into text chunks with blank
// lines dropped.
func splitSection(content, section string) []ParentChunk {
	var chunks []ParentChunk
	var current []string
	currentType := ""

	save := func(typ string) {
		if len(current) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(current, "\n"))
		current = nil
		if text == "" {
			return
		}
		if typ == "" {
			typ = store.NodeText
		}
		chunks = append(chunks, ParentChunk{Section: section, NodeType: typ, Content: text})
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if imageLineRe.MatchString(trimmed) {
			save(currentType)
			currentType = ""
			chunks = append(chunks, ParentChunk{Section: section, NodeType: store.NodeImage, Content: trimmed})
			continue
		}

		if tableLineRe.MatchString(line) {
			if currentType != store.NodeTable {
				save(currentType)
				currentType = store.NodeTable
			}
			current = append(current, line)
			continue
		}

		if currentType == store.NodeTable {
			save(store.NodeTable)
			currentType = store.NodeText
		}
		if trimmed == "" {
			continue
		}
		currentType = store.NodeText
		current = append(current, line)
	}
	save(currentType)

	// A section of pure whitespace still yields one text chunk so the
	// document structure stays visible.
	if len(chunks) == 0 {
		if t := strings.TrimSpace(content); t != "" {
			chunks = append(chunks, ParentChunk{Section: section, NodeType: store.NodeText, Content: t})
		}
	}
	return chunks
}

// imageURLRe captures the alt text and URL of a markdown image.
var imageURLRe = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

// parseImage extracts the alt text and URL from a markdown image line.
func parseImage(markdown string) (alt, url string, ok bool) {
	m := imageURLRe.FindStringSubmatch(markdown)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
