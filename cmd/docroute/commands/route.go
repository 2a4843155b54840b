package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
)

// NewRouteCmd constructs the `docroute route` command, which makes one
// routing decision from the command line.
func NewRouteCmd() *cobra.Command {
	var name string
	var topK int
	var threshold float32
	var noRecord bool

	cmd := &cobra.Command{
		Use:   "route <summary>",
		Short: "Route a document summary to the best-matching role",
		Long: `Embed the given summary, compare it against every active responsibility
profile, and print the winning profile with its similarity and confidence
band. The decision is recorded in the assignment ledger unless --no-record
is passed.

A summary below the configured threshold falls back to the designated
manager profile; "no match" is a normal outcome, not an error.

Examples:
  docroute route "Quarterly budget variance report for the finance team"
  docroute route --name invoice.md --threshold 0.7 "March supplier invoices"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("route: %w", err)
			}
			defer closeAll()

			docName := name
			if docName == "" {
				docName = "cli"
			}
			req := router.Request{
				DocumentName: docName,
				Text:         args[0],
				TopK:         topK,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}

			result, err := c.router.Route(ctx, req)
			if err != nil {
				return fmt.Errorf("route: %w", err)
			}

			if result.NoMatch() {
				fmt.Fprintln(os.Stdout, "no match: no profile cleared the threshold and no fallback is available")
				return nil
			}

			best := result.Best
			kind := "match"
			if result.FallbackUsed {
				kind = "fallback"
			}
			fmt.Fprintf(os.Stdout, "%s: %s (similarity %.4f, band %s)\n",
				kind, best.Profile.Name, best.Similarity, best.Band)
			for _, cand := range result.Candidates {
				fmt.Fprintf(os.Stdout, "  candidate: %-30s %.4f %s\n",
					cand.Profile.Name, cand.Similarity, cand.Band)
			}

			if !noRecord {
				a, err := c.ledger.Append(ctx, ledger.Entry{
					ProfileID:    best.Profile.ID,
					DocumentName: docName,
					Summary:      args[0],
					Confidence:   float64(best.Similarity),
					Band:         best.Band,
					FallbackUsed: result.FallbackUsed,
				})
				if err != nil {
					return fmt.Errorf("route: record assignment: %w", err)
				}
				log.Info("assignment recorded", slog.String("id", a.ID.String()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Document name recorded with the assignment")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of candidate profiles to consider")
	cmd.Flags().Float32VarP(&threshold, "threshold", "t", 0, "Similarity threshold override")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not write the outcome to the assignment ledger")

	return cmd
}
