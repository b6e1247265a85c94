package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archon-iirc/archon/internal/chunk"
	"github.com/archon-iirc/archon/internal/config"
	"github.com/archon-iirc/archon/internal/crawler"
	"github.com/archon-iirc/archon/internal/ingest"
	"github.com/archon-iirc/archon/internal/llm"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

func newIngestCmd() *cobra.Command {
	var (
		sourceID   string
		collection string
		maxDepth   int
	)

	cmd := &cobra.Command{
		Use:   "ingest [url]",
		Short: "Crawl a seed URL and index it synchronously",
		Long: `Run one crawl-and-index job to completion without starting the
HTTP server, useful for scripting and cron.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], sourceID, collection, maxDepth)
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "Source id to assign (defaults to the seed URL)")
	cmd.Flags().StringVar(&collection, "collection", "docs", "Vector store collection to write into")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 2, "Maximum crawl depth")

	return cmd
}

func runIngest(cmd *cobra.Command, seed, sourceID, collection string, maxDepth int) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	deps, err := buildDeps(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}
	defer deps.Close()

	if sourceID == "" {
		sourceID = seed
	}

	dim := deps.embedder.Dimensions()
	if err := deps.store.CreateCollection(cmd.Context(), collection, dim, vectorstore.MetricCosine); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	if err := deps.store.CreateCollection(cmd.Context(), ingest.CodeCollection(collection), dim, vectorstore.MetricCosine); err != nil {
		return fmt.Errorf("creating code collection: %w", err)
	}

	tracker := progress.New()

	var contextGen *llm.ContextGenerator
	if deps.llmProv != nil && cfg.LLM.ContextualPrefix {
		contextGen = llm.NewContextGenerator(deps.llmProv)
	}

	pipeline, err := ingest.New(ingest.Dependencies{
		Tracker:    tracker,
		Store:      deps.store,
		Pages:      deps.store,
		Embedder:   deps.embedder,
		Processor:  newDocumentProcessor(),
		Chunker:    chunk.NewMarkdownChunker(),
		ContextGen: contextGen,
	})
	if err != nil {
		return fmt.Errorf("building ingest pipeline: %w", err)
	}

	result, err := pipeline.Run(cmd.Context(), ingest.Job{
		SourceID:   sourceID,
		Seed:       seed,
		Collection: collection,
		CrawlOptions: crawler.Options{
			MaxDepth: maxDepth,
		},
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d pages, %d chunks, %d code examples (%d embed failures)\n",
		result.PagesIngested, result.ChunksIndexed, result.CodeExamples, result.EmbedFailures)
	return nil
}
