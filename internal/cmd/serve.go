package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/patternlab/graphscout/internal/observability"
	"github.com/patternlab/graphscout/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local status server",
	Long: `Serve a small read-only HTTP API over the local history and the
annotation backend: /health, /version, /history, /jobs/{id}. Useful for
dashboards and scripts on the same workstation.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Bind host (default from config)")
	serveCmd.Flags().Int("port", 0, "Bind port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	if host == "" {
		host = cfg.Server.Host
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	store, err := historyStore()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}
	annotations, err := annotationClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}

	srv := server.New(host, port, server.Deps{
		History:     store,
		Annotations: annotations,
		Version:     versionInfo.Version,
		Logger:      observability.CLILogger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Status server failed", err)
	}
	return nil
}
