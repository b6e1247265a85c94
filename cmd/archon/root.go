// Package cmd provides the CLI commands for the Archon backend service.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/archon-iirc/archon/internal/logging"
	"github.com/archon-iirc/archon/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the archon CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archon",
		Short: "Archon ingestion, indexing, and retrieval backend",
		Long: `Archon crawls and indexes documentation and code into a hybrid
BM25 + semantic vector store, and serves it over an HTTP API and a
JSON-RPC tool bridge for retrieval-augmented-generation agents.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("archon version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newReembedCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
