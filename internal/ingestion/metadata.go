package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// supportedExtensions lists the file types the pipeline accepts. Content is
// treated as markdown; plain text passes through the splitter unchanged.
var supportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// DocumentFromFile reads a markdown file and derives its ingestion
// metadata. The document ID is derived deterministically from the absolute
// path, so ingesting the same file again replaces its nodes instead of
// duplicating them. The file's modification time becomes the source
// creation time used for conflict resolution.
func DocumentFromFile(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: resolve %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if !supportedExtensions[ext] {
		return Document{}, fmt.Errorf("ingestion: unsupported file type %q (want .md, .markdown, or .txt)", ext)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("ingestion: %s is a directory", path)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: read %s: %w", path, err)
	}

	return Document{
		DocID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)),
		Name:            filepath.Base(abs),
		Content:         string(content),
		SourceCreatedAt: info.ModTime(),
	}, nil
}
