package cmd

import (
	"encoding/json"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/patternlab/graphscout/pkg/api"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and suggest graph schemas",
}

var schemaGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch the current graph schema from the loader",
	RunE:  runSchemaGet,
}

var schemaSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the loader to suggest a schema from sample CSVs",
	Long: `Upload node and edge CSV samples and print the schema the backend
suggests for them. File arguments accept glob patterns, including **.`,
	RunE: runSchemaSuggest,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaGetCmd)
	schemaCmd.AddCommand(schemaSuggestCmd)

	schemaSuggestCmd.Flags().StringSlice("nodes", nil, "Node CSV files or glob patterns")
	schemaSuggestCmd.Flags().StringSlice("edges", nil, "Edge CSV files or glob patterns")
}

func runSchemaGet(cmd *cobra.Command, _ []string) error {
	client, err := loaderClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid loader endpoint", err)
	}

	schema, err := client.GetSchema(cmd.Context())
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch schema", err)
	}
	return printJSON(schema)
}

func runSchemaSuggest(cmd *cobra.Command, _ []string) error {
	nodePatterns, _ := cmd.Flags().GetStringSlice("nodes")
	edgePatterns, _ := cmd.Flags().GetStringSlice("edges")

	nodes, edges, err := expandInputFiles(nodePatterns, edgePatterns)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid input files", err)
	}

	client, err := loaderClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid loader endpoint", err)
	}

	schema, err := client.SuggestSchema(cmd.Context(), api.SuggestRequest{
		NodeFiles: nodes,
		EdgeFiles: edges,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Schema suggestion failed", err)
	}
	return printJSON(schema)
}

// expandInputFiles resolves the --nodes/--edges glob patterns, requiring at
// least one CSV overall.
func expandInputFiles(nodePatterns, edgePatterns []string) (nodes, edges []string, err error) {
	nodes, err = expandGlobs(nodePatterns)
	if err != nil {
		return nil, nil, err
	}
	edges, err = expandGlobs(edgePatterns)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
