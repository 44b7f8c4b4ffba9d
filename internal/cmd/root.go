// Package cmd implements the graphscout command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/patternlab/graphscout/internal/config"
	"github.com/patternlab/graphscout/internal/observability"
	"github.com/patternlab/graphscout/pkg/api"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected at link time.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool

	// cfg is loaded once in PersistentPreRunE and read by every subcommand.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "graphscout",
	Short: "Explore knowledge graphs: load CSVs, annotate, mine patterns",
	Long: `graphscout is a command-line client for a knowledge-graph exploration
backend. It uploads node/edge CSVs through the loader API, submits and
tracks annotation jobs (live via websocket updates), runs pattern-mining
jobs against the integration API, and keeps a local history of past runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		observability.InitCLILogger(observability.Options{
			Verbose: verbose,
			JSON:    jsonLogs,
		})
		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.graphscout/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
}

// Execute runs the root command and exits the process on failure.
func Execute() {
	err := rootCmd.Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var coded *codedError
		if errors.As(err, &coded) {
			os.Exit(coded.code)
		}
		os.Exit(1)
	}
}

// codedError pairs a user-facing message with a process exit code.
type codedError struct {
	code    int
	message string
	err     error
}

func (e *codedError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *codedError) Unwrap() error { return e.err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, message: message, err: err}
}

// clientOptions builds shared HTTP client options from the loaded config.
func clientOptions() api.Options {
	return api.Options{
		Timeout:   cfg.Client.Timeout,
		RateLimit: cfg.Client.RateLimit,
		Logger:    observability.CLILogger,
	}
}

func loaderClient() (*api.LoaderClient, error) {
	return api.NewLoaderClient(cfg.Endpoints.Loader, clientOptions())
}

func annotationClient() (*api.AnnotationClient, error) {
	return api.NewAnnotationClient(cfg.Endpoints.Annotation, clientOptions())
}

func miningClient() (*api.MiningClient, error) {
	return api.NewMiningClient(cfg.Endpoints.Integration, clientOptions())
}

// expandGlobs resolves each pattern against the filesystem. Patterns support
// doublestar syntax (**, {a,b}). A literal path with no matches is an error,
// so typos fail fast instead of uploading nothing.
func expandGlobs(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		out = append(out, matches...)
	}
	return out, nil
}
