package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archon-iirc/archon/internal/config"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/reembed"
)

func newReembedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reembed [collection]",
		Short: "Recompute embeddings for a collection synchronously",
		Long: `Walk every chunk in collection and rewrite its embedding with the
currently configured provider, useful after switching embedding models
without starting the HTTP server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReembed(cmd, args[0])
		},
	}
}

func runReembed(cmd *cobra.Command, collection string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	deps, err := buildDeps(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}
	defer deps.Close()

	tracker := progress.New()
	svc, err := reembed.New(reembed.Dependencies{
		Tracker:  tracker,
		Store:    deps.store,
		Embedder: deps.embedder,
	})
	if err != nil {
		return fmt.Errorf("building re-embed service: %w", err)
	}

	result, err := svc.Start(cmd.Context(), collection)
	if err != nil {
		return fmt.Errorf("re-embed failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "re-embedded %d chunks (%d failed) with model %s\n",
		result.ChunksProcessed, result.ChunksFailed, result.EmbeddingModel)
	return nil
}
