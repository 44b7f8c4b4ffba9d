package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the local annotation job history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past annotation jobs, newest first",
	Long: `List annotation jobs from the local history merged with the
backend's authoritative list. When the backend is unreachable the local
cache is shown alone.`,
	RunE: runHistoryList,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)

	historyListCmd.Flags().Bool("json", false, "Output as JSON")
	historyListCmd.Flags().Bool("local", false, "Skip the backend fetch and show the cache only")
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	localOnly, _ := cmd.Flags().GetBool("local")

	store, err := historyStore()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid annotation endpoint", err)
	}

	entries := store.Hydrate()
	if !localOnly {
		entries = store.Refresh(cmd.Context())
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No history entries")
		return nil
	}

	if jsonOutput {
		return printJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "ANNOTATION ID\tTITLE\tCREATED\tNODES\tEDGES")
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			e.AnnotationID, title, e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.NodeCount, e.EdgeCount)
	}
	return nil
}
