package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShreyasNK2006/docroute-go/internal/embedder"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/server"
)

// NewServeCmd constructs the `docroute serve` command, which starts the
// HTTP server exposing routing, ingestion, and role management.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docroute HTTP server",
		Long: `Start the docroute HTTP server on localhost.

The server exposes routing decisions (POST /api/route), document ingestion
(POST /api/ingest), retrieval (POST /api/query), responsibility profile
management (/api/roles), and the assignment ledger (/api/assignments).

Set DOCROUTE_API_KEY to require a Bearer token on all /api routes.

Examples:
  docroute serve
  docroute serve --port 9090
  EMBEDDING_PROVIDER=openai docroute serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			c, closeAll, err := buildComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeAll()

			pingers := []server.Pinger{
				server.NewStorePinger(c.store),
				server.NewQdrantPinger(c.roleIndex.Client()),
				server.NewEmbedderPinger(c.embedder, embedder.Backend()),
			}

			srv, err := server.New(server.Deps{
				Registry:  c.registry,
				Router:    c.router,
				Ledger:    c.ledger,
				Pipeline:  c.pipeline,
				Retriever: c.retriever,
				Store:     c.store,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DOCROUTE_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
