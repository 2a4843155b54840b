package ingestion

import (
	"fmt"
	"path"
	"strings"
)

// Proxy text generation for non-text parents. Tables and images cannot be
// embedded directly, so each gets a deterministic natural-language stand-in
// derived from its own content and position in the document. The proxy is
// what gets embedded and searched; the parent keeps the original markdown.

// tableProxy describes a markdown table for embedding: document context,
// column names, and the flattened cell values so specific numbers and
// names stay searchable.
func tableProxy(tableMarkdown, source, section string) string {
	cols, rows := parseTable(tableMarkdown)

	var b strings.Builder
	fmt.Fprintf(&b, "Table from %s", source)
	if section != "" && section != noHeader {
		fmt.Fprintf(&b, ", section %s", section)
	}
	if len(cols) > 0 {
		fmt.Fprintf(&b, ", with columns %s", strings.Join(cols, ", "))
	}
	fmt.Fprintf(&b, " (%d rows).", len(rows))
	for _, row := range rows {
		b.WriteString(" ")
		b.WriteString(strings.Join(row, " "))
		b.WriteString(".")
	}
	return b.String()
}

// imageProxy describes a markdown image for embedding, preferring the
// author's alt text and falling back to the image filename.
func imageProxy(imageMarkdown, source, section string) string {
	alt, url, ok := parseImage(imageMarkdown)

	var b strings.Builder
	fmt.Fprintf(&b, "Image from %s", source)
	if section != "" && section != noHeader {
		fmt.Fprintf(&b, ", section %s", section)
	}
	switch {
	case ok && alt != "":
		fmt.Fprintf(&b, ": %s", alt)
	case ok && url != "":
		fmt.Fprintf(&b, ": %s", path.Base(url))
	}
	return b.String()
}

// parseTable extracts column names and data rows from a markdown table.
// The separator row (dashes and colons) is dropped.
func parseTable(tableMarkdown string) (cols []string, rows [][]string) {
	for _, line := range strings.Split(tableMarkdown, "\n") {
		cells := parseRow(line)
		if cells == nil {
			continue
		}
		if isSeparatorRow(cells) {
			continue
		}
		if cols == nil {
			cols = cells
			continue
		}
		rows = append(rows, cells)
	}
	return cols, rows
}

// parseRow splits one "| a | b |" line into trimmed cell values, or nil
// when the line is not a table row.
func parseRow(line string) []string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
		return nil
	}
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// isSeparatorRow reports whether all cells are markdown alignment markers.
func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			continue
		}
		if strings.Trim(c, ":-") != "" {
			return false
		}
	}
	return true
}
