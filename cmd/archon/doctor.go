package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archon-iirc/archon/internal/config"
	"github.com/archon-iirc/archon/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run startup diagnostics: disk space, memory, write permissions,
file descriptor limits, and liveness of the configured vector store and
embedding provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	deps, err := buildDeps(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}
	defer deps.Close()

	checker := doctor.New(
		doctor.WithOutput(cmd.OutOrStdout()),
		doctor.WithVerbose(verbose),
		doctor.WithVectorStore(deps.store),
		doctor.WithEmbeddingProvider(deps.embedder),
		doctor.WithPageStore(deps.store, "docs"),
	)

	dataDir, err := os.Getwd()
	if err != nil {
		return err
	}
	results := checker.RunAll(cmd.Context(), dataDir)

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(map[string]any{
			"status": checker.SummaryStatus(results),
			"checks": results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}
