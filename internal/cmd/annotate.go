package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patternlab/graphscout/internal/observability"
	"github.com/patternlab/graphscout/pkg/annotation"
	"github.com/patternlab/graphscout/pkg/api"
	"github.com/patternlab/graphscout/pkg/history"
	"github.com/patternlab/graphscout/pkg/reconcile"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Submit and track graph annotation jobs",
}

var annotateSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit node/edge CSVs as a new annotation job",
	Long: `Upload node and edge CSV files to start an annotation job. The
backend-assigned job id is printed and recorded in the local history.
With --watch the command stays attached and follows live updates until
the job completes or fails.`,
	RunE: runAnnotateSubmit,
}

var annotateWatchCmd = &cobra.Command{
	Use:   "watch [job_id]",
	Short: "Follow live updates for an annotation job",
	Long: `Attach to the annotation update channel and follow a job until it
reaches COMPLETE or FAILED. Without a job id the most recent job from
the local history is watched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnnotateWatch,
}

var annotateStatusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show the current state of an annotation job",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnnotateStatus,
}

var annotateRenameCmd = &cobra.Command{
	Use:   "rename <job_id> <title>",
	Short: "Rename an annotation job",
	Args:  cobra.ExactArgs(2),
	RunE:  runAnnotateRename,
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	annotateCmd.AddCommand(annotateSubmitCmd)
	annotateCmd.AddCommand(annotateWatchCmd)
	annotateCmd.AddCommand(annotateStatusCmd)
	annotateCmd.AddCommand(annotateRenameCmd)

	annotateSubmitCmd.Flags().StringSlice("nodes", nil, "Node CSV files or glob patterns")
	annotateSubmitCmd.Flags().StringSlice("edges", nil, "Edge CSV files or glob patterns")
	annotateSubmitCmd.Flags().String("title", "", "Human-readable title for the job")
	annotateSubmitCmd.Flags().Bool("watch", false, "Follow live updates after submitting")
}

// historyStore builds the merged history store over the configured cache
// file and the annotation API.
func historyStore() (*history.Store, error) {
	client, err := annotationClient()
	if err != nil {
		return nil, err
	}
	cache := history.NewFileCache(cfg.Cache.Path, cfg.Cache.HistoryLimit)
	return history.NewStore(cache, client, cfg.Cache.HistoryLimit, observability.CLILogger), nil
}

// resolveJobID returns the explicit id when given, otherwise the default
// selection from the history: the local cache first, then the remote-merged
// view when the cache has nothing to select.
func resolveJobID(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	store, err := historyStore()
	if err != nil {
		return "", err
	}
	id := history.DefaultSelection("", store.Hydrate())
	if id == "" {
		id = history.DefaultSelection("", store.Refresh(ctx))
	}
	if id == "" {
		return "", fmt.Errorf("no job id given and history is empty")
	}
	return id, nil
}

func runAnnotateSubmit(cmd *cobra.Command, _ []string) error {
	nodePatterns, _ := cmd.Flags().GetStringSlice("nodes")
	edgePatterns, _ := cmd.Flags().GetStringSlice("edges")
	title, _ := cmd.Flags().GetString("title")
	watch, _ := cmd.Flags().GetBool("watch")

	nodes, edges, err := expandInputFiles(nodePatterns, edgePatterns)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid input files", err)
	}
	if len(nodes) == 0 && len(edges) == 0 {
		return exitError(foundry.ExitInvalidArgument, "Nothing to submit",
			fmt.Errorf("provide --nodes and/or --edges"))
	}

	client, err := annotationClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}

	res, err := client.Submit(cmd.Context(), api.SubmitRequest{
		NodeFiles: nodes,
		EdgeFiles: edges,
		Title:     title,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Submission failed", err)
	}

	// Optimistic history entry; counts stay zero until the backend reports.
	store, err := historyStore()
	if err == nil {
		store.RecordSubmission(res.JobID, title, time.Now().UTC())
	}

	fmt.Fprintln(os.Stdout, res.JobID)
	if !watch {
		return nil
	}
	return watchJob(cmd.Context(), client, res.JobID)
}

func runAnnotateWatch(cmd *cobra.Command, args []string) error {
	var explicit string
	if len(args) == 1 {
		explicit = args[0]
	}
	jobID, err := resolveJobID(cmd.Context(), explicit)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot resolve job id", err)
	}

	client, err := annotationClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}
	return watchJob(cmd.Context(), client, jobID)
}

// watchJob follows an annotation job over the websocket channel until it
// reaches a terminal state or the user interrupts.
func watchJob(parent context.Context, client *api.AnnotationClient, jobID string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := client.Get(ctx, jobID)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch job", err)
	}
	printJobLine(*rec)
	if rec.Status.Terminal() {
		return terminalResult(*rec)
	}

	tracker := reconcile.NewTracker(*rec, reconcile.TrackerOptions{
		Dial: reconcile.NewWSDialer(cfg.Endpoints.Socket, observability.CLILogger),
		Revalidate: func(ctx context.Context) (*annotation.Record, error) {
			return client.Get(ctx, jobID)
		},
		OnChange: printJobLine,
		Logger:   observability.CLILogger,
	})
	tracker.Start(ctx)
	defer tracker.Stop()

	select {
	case <-tracker.Done():
	case <-ctx.Done():
		tracker.Stop()
		return exitError(foundry.ExitSignalInt, "Watch cancelled", ctx.Err())
	}
	return terminalResult(tracker.Snapshot())
}

func printJobLine(rec annotation.Record) {
	line := fmt.Sprintf("[%s] %s", rec.Status, rec.JobID)
	if rec.Summary != "" {
		line += "  " + rec.Summary
	}
	if rec.NodeCount > 0 || rec.EdgeCount > 0 {
		line += fmt.Sprintf("  (%d nodes, %d edges)", rec.NodeCount, rec.EdgeCount)
	}
	fmt.Fprintln(os.Stdout, line)
}

// terminalResult maps a finished job onto the process exit status.
func terminalResult(rec annotation.Record) error {
	if rec.Status == annotation.StatusFailed {
		return exitError(foundry.ExitExternalServiceUnavailable, "Annotation job failed",
			fmt.Errorf("job %s reported FAILED", rec.JobID))
	}
	return nil
}

func runAnnotateStatus(cmd *cobra.Command, args []string) error {
	var explicit string
	if len(args) == 1 {
		explicit = args[0]
	}
	jobID, err := resolveJobID(cmd.Context(), explicit)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot resolve job id", err)
	}

	client, err := annotationClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}
	rec, err := client.Get(cmd.Context(), jobID)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch job", err)
	}
	return printJSON(rec)
}

func runAnnotateRename(cmd *cobra.Command, args []string) error {
	client, err := annotationClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}

	// Fire and forget: a failed rename is logged, never fatal.
	if err := client.RenameTitle(cmd.Context(), args[0], args[1]); err != nil {
		observability.CLILogger.Warn("rename failed",
			zap.String("job_id", args[0]),
			zap.Error(err))
	}
	return nil
}
