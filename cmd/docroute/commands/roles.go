package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// NewRolesCmd constructs the `docroute roles` command group for managing
// responsibility profiles.
func NewRolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage responsibility profiles",
		Long: `Create, list, and deactivate responsibility profiles.

Each profile carries a natural-language responsibility description; its
embedding is what documents are matched against. Deactivating a profile
keeps its assignment history but stops new documents from reaching it.`,
	}

	cmd.AddCommand(newRolesAddCmd(), newRolesListCmd(), newRolesDeactivateCmd())
	return cmd
}

func newRolesAddCmd() *cobra.Command {
	var department string
	var responsibilities string
	var priority int
	var businessID string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a responsibility profile",
		Example: `  docroute roles add "Finance Manager" \
    --department Finance --priority 7 \
    --responsibilities "Owns budgets, forecasting, and expense approvals."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("roles add: %w", err)
			}
			defer closeAll()

			np := registry.NewProfile{
				Name:             args[0],
				Department:       department,
				Responsibilities: responsibilities,
				Priority:         priority,
			}
			if businessID != "" {
				id, err := uuid.Parse(businessID)
				if err != nil {
					return fmt.Errorf("roles add: business-id must be a UUID")
				}
				np.BusinessID = &id
			}

			p, err := c.registry.Create(ctx, np)
			if err != nil {
				return fmt.Errorf("roles add: %w", err)
			}
			fmt.Fprintf(os.Stdout, "created profile %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&department, "department", "d", "", "Organizational department")
	cmd.Flags().StringVarP(&responsibilities, "responsibilities", "r", "", "Responsibility description the profile is matched by")
	cmd.Flags().IntVarP(&priority, "priority", "p", 5, "Tie-break priority (1-10, higher wins)")
	cmd.Flags().StringVar(&businessID, "business-id", "", "Tenant scope UUID (optional)")

	return cmd
}

func newRolesListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List responsibility profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("roles list: %w", err)
			}
			defer closeAll()

			profiles, err := c.registry.List(ctx, store.ProfileFilter{ActiveOnly: !all})
			if err != nil {
				return fmt.Errorf("roles list: %w", err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tPRIORITY\tACTIVE")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n",
					p.ID, p.Name, p.Department, p.Priority, p.Active)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include deactivated profiles")
	return cmd
}

func newRolesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a responsibility profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("roles deactivate: id must be a UUID")
			}

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("roles deactivate: %w", err)
			}
			defer closeAll()

			if err := c.registry.Deactivate(ctx, id); err != nil {
				return fmt.Errorf("roles deactivate: %w", err)
			}
			fmt.Fprintf(os.Stdout, "deactivated profile %s\n", id)
			return nil
		},
	}
}
