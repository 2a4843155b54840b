package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ShreyasNK2006/docroute-go/internal/ingestion"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
)

// NewIngestCmd constructs the `docroute ingest` command, which splits
// markdown files into parent/child nodes and indexes them.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest markdown documents into the store",
		Long: `Split one or more markdown files into typed parent nodes (text sections,
tables, images), embed their child chunks, and index them for retrieval.

Document identity is derived from the file path, so re-ingesting the same
file replaces its previous nodes instead of duplicating them.

Required environment variables:
  QDRANT_HOST             Qdrant server hostname (default: localhost)
  QDRANT_PORT             Qdrant gRPC port (default: 6334)
  QDRANT_DOC_COLLECTION   Collection for child vectors (default: docroute-docs)
  EMBEDDING_PROVIDER      Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*             Provider-specific overrides (see README)

Examples:
  docroute ingest handbook.md
  docroute ingest docs/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeAll()

			for _, path := range args {
				doc, err := ingestion.DocumentFromFile(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}

				stats, err := c.pipeline.Ingest(ctx, doc, func(msg string) {
					log.Info(msg)
				})
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				log.Info("document ingested",
					slog.String("file", path),
					slog.String("doc_id", stats.DocID.String()),
					slog.Int("parents", stats.ParentNodes),
					slog.Int("children", stats.ChildVectors),
					slog.Int("tables", stats.Tables),
					slog.Int("images", stats.Images),
				)
			}

			log.Info("ingestion complete", slog.Int("files", len(args)))
			return nil
		},
	}

	return cmd
}
