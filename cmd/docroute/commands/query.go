package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/retrieval"
)

// NewQueryCmd constructs the `docroute query` command for searching
// ingested documents.
func NewQueryCmd() *cobra.Command {
	var topK int
	var minScore float32
	var nodeType string
	var full bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search ingested documents",
		Long: `Embed the query, find the closest child chunks, and print their parent
nodes. Results are deduplicated per parent and, when two ingested
documents cover the same section, the newer source wins.

Examples:
  docroute query "when are expense reports due"
  docroute query --type table "headcount by department"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer closeAll()

			results, err := c.retriever.Search(ctx, args[0], retrieval.Options{
				TopK:          topK,
				MinSimilarity: minScore,
				NodeType:      nodeType,
			})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if len(results) == 0 {
				fmt.Fprintln(os.Stdout, "no results")
				return nil
			}
			for i, res := range results {
				marker := ""
				if res.Conflict {
					marker = " [superseded an older source]"
				}
				fmt.Fprintf(os.Stdout, "%d. %.4f  %s — %s (%s)%s\n",
					i+1, res.Similarity, res.Parent.Source, res.Parent.Section, res.Parent.NodeType, marker)
				if full {
					fmt.Fprintln(os.Stdout, res.Parent.Content)
				} else {
					fmt.Fprintf(os.Stdout, "   %s\n", res.ChildContent)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of results")
	cmd.Flags().Float32Var(&minScore, "min-score", 0, "Minimum similarity for a hit")
	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "Restrict to one node type: text, table, or image")
	cmd.Flags().BoolVar(&full, "full", false, "Print full parent content instead of the matched chunk")

	return cmd
}
