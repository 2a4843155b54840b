// Package commands defines all Cobra CLI commands for the docroute binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ShreyasNK2006/docroute-go/internal/audit"
	"github.com/ShreyasNK2006/docroute-go/internal/config"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docroute",
		Short: "docroute — semantic document routing for organizational roles",
		Long: `docroute ingests markdown documents, splits them into typed parent and
child nodes, and routes content to organizational responsibility profiles
by embedding similarity.

Documents land with the role whose described responsibilities are closest
to the document's summary; a configurable fallback catches everything else.

The embedding backend is selected via the EMBEDDING_PROVIDER environment
variable or a YAML config file (~/.docroute/config.yaml).
See 'docroute --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docroute/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewRouteCmd(),
		NewRolesCmd(),
		NewQueryCmd(),
		NewVersionCmd(),
	)

	return root
}
