package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patternlab/graphscout/internal/observability"
	"github.com/patternlab/graphscout/pkg/api"
	"github.com/patternlab/graphscout/pkg/manifest"
	"github.com/patternlab/graphscout/pkg/reconcile"
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Run and track pattern-mining jobs",
}

var mineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pattern-mining job from a manifest",
	Long: `Run a mining job described by a YAML or JSON manifest. When the
manifest has no job id, node/edge CSVs given via --nodes/--edges are
uploaded first to generate a graph. Progress is polled once a second
until the backend reports a result.`,
	RunE: runMineRun,
}

var mineStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show current progress for a mining job",
	Args:  cobra.ExactArgs(1),
	RunE:  runMineStatus,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.AddCommand(mineRunCmd)
	mineCmd.AddCommand(mineStatusCmd)

	mineRunCmd.Flags().String("job", "", "Mining manifest file (YAML or JSON)")
	mineRunCmd.Flags().StringSlice("nodes", nil, "Node CSV files for graph generation")
	mineRunCmd.Flags().StringSlice("edges", nil, "Edge CSV files for graph generation")
	_ = mineRunCmd.MarkFlagRequired("job")
}

func runMineRun(cmd *cobra.Command, _ []string) error {
	manifestPath, _ := cmd.Flags().GetString("job")
	nodePatterns, _ := cmd.Flags().GetStringSlice("nodes")
	edgePatterns, _ := cmd.Flags().GetStringSlice("edges")

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	client, err := miningClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid integration endpoint", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobID := m.JobID
	if jobID == "" {
		nodes, edges, err := expandInputFiles(nodePatterns, edgePatterns)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid input files", err)
		}
		switch {
		case len(nodes) > 0 || len(edges) > 0:
			gen, err := client.GenerateGraph(ctx, api.GenerateRequest{
				NodeFiles: nodes,
				EdgeFiles: edges,
			})
			if err != nil {
				return exitError(foundry.ExitExternalServiceUnavailable, "Graph generation failed", err)
			}
			jobID = gen.JobID
			observability.CLILogger.Info("graph generated", zap.String("job_id", jobID))
		default:
			// No explicit target anywhere: mine the most recent job from
			// the local history.
			jobID, err = resolveJobID(ctx, "")
			if err != nil {
				return exitError(foundry.ExitInvalidArgument, "Cannot resolve job id", err)
			}
			observability.CLILogger.Info("using most recent job from history",
				zap.String("job_id", jobID))
		}
	}

	poller := reconcile.NewPoller(jobID, func(ctx context.Context, id string) (reconcile.Progress, error) {
		status, err := client.Status(ctx, id)
		if err != nil {
			return reconcile.Progress{}, err
		}
		return reconcile.Progress{Percent: status.Progress, Message: status.Message}, nil
	}, reconcile.PollerOptions{
		Interval: cfg.Client.PollInterval,
		OnUpdate: func(p reconcile.Progress) {
			fmt.Fprintf(os.Stdout, "\r%6.1f%%  %s", p.Percent, p.Message)
		},
		Logger: observability.CLILogger,
	})
	poller.Start(ctx)
	defer poller.Stop()

	res, err := client.MinePatterns(ctx, m.MineRequest(jobID))
	poller.Stop()
	fmt.Fprintln(os.Stdout)
	if err != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Mining cancelled", ctx.Err())
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Mining failed", err)
	}

	fmt.Fprintf(os.Stdout, "Found %d patterns\n", res.PatternsCount)
	if res.DownloadURL != "" {
		fmt.Fprintf(os.Stdout, "Download: %s\n", res.DownloadURL)
	}
	return nil
}

func runMineStatus(cmd *cobra.Command, args []string) error {
	client, err := miningClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid integration endpoint", err)
	}

	status, err := client.Status(cmd.Context(), args[0])
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch status", err)
	}
	fmt.Fprintf(os.Stdout, "%6.1f%%  %s\n", status.Progress, status.Message)
	return nil
}
