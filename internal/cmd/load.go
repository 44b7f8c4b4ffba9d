package cmd

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patternlab/graphscout/internal/observability"
	"github.com/patternlab/graphscout/pkg/api"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import node and edge CSVs into the graph",
	Long: `Upload node and edge CSV files to the loader API for import.
File arguments accept glob patterns, including ** (e.g. data/**/nodes_*.csv).
An optional schema JSON file describes the CSV columns; without one the
backend infers a schema.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringSlice("nodes", nil, "Node CSV files or glob patterns")
	loadCmd.Flags().StringSlice("edges", nil, "Edge CSV files or glob patterns")
	loadCmd.Flags().String("schema", "", "Schema JSON file describing the CSV columns")
}

func runLoad(cmd *cobra.Command, _ []string) error {
	nodePatterns, _ := cmd.Flags().GetStringSlice("nodes")
	edgePatterns, _ := cmd.Flags().GetStringSlice("edges")
	schemaPath, _ := cmd.Flags().GetString("schema")

	nodes, edges, err := expandInputFiles(nodePatterns, edgePatterns)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid input files", err)
	}
	if len(nodes) == 0 && len(edges) == 0 {
		return exitError(foundry.ExitInvalidArgument, "Nothing to load",
			fmt.Errorf("provide --nodes and/or --edges"))
	}
	if schemaPath != "" {
		if _, err := os.Stat(schemaPath); err != nil {
			return exitError(foundry.ExitFileNotFound, "Schema file not found", err)
		}
	}

	client, err := loaderClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid loader endpoint", err)
	}

	observability.CLILogger.Info("uploading CSVs",
		zap.Int("node_files", len(nodes)),
		zap.Int("edge_files", len(edges)),
		zap.String("schema", schemaPath))

	res, err := client.Load(cmd.Context(), api.LoadRequest{
		NodeFiles:  nodes,
		EdgeFiles:  edges,
		SchemaPath: schemaPath,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Import failed", err)
	}

	if res.Message != "" {
		fmt.Fprintln(os.Stdout, res.Message)
	}
	fmt.Fprintf(os.Stdout, "Loaded %d nodes and %d edges\n", res.NodesLoaded, res.EdgesLoaded)
	return nil
}
