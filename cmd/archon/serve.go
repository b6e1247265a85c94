package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/archon-iirc/archon/internal/chunk"
	"github.com/archon-iirc/archon/internal/config"
	"github.com/archon-iirc/archon/internal/httpapi"
	"github.com/archon-iirc/archon/internal/ingest"
	"github.com/archon-iirc/archon/internal/llm"
	"github.com/archon-iirc/archon/internal/metrics"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/reembed"
	"github.com/archon-iirc/archon/internal/search"
	"github.com/archon-iirc/archon/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Archon HTTP API server",
		Long: `Start the HTTP server that exposes crawl/upload ingestion, hybrid
search, page lookup, re-embed control, and the JSON-RPC tool bridge.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err.Error())
		}
	}()

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}
	defer deps.Close()

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

	if err := metrics.InitTelemetrySchema(deps.store.RawDB()); err != nil {
		return fmt.Errorf("initializing query metrics schema: %w", err)
	}
	metricsStore, err := metrics.NewSQLiteMetricsStore(deps.store.RawDB())
	if err != nil {
		return fmt.Errorf("building query metrics store: %w", err)
	}
	queryMetrics := metrics.NewQueryMetrics(metricsStore)
	defer queryMetrics.Close()

	engine := search.NewEngine(deps.store, deps.embedder,
		search.WithPageFetcher(deps.store),
		search.WithMaxPageChars(cfg.Crawl.MaxPageChars),
		search.WithQueryMetrics(queryMetrics),
	)

	reembedSvc, err := reembed.New(reembed.Dependencies{
		Tracker:  tracker,
		Store:    deps.store,
		Embedder: deps.embedder,
	})
	if err != nil {
		return fmt.Errorf("building re-embed service: %w", err)
	}

	server := httpapi.New(httpapi.Config{
		Store:          deps.store,
		Pages:          deps.store,
		Pipeline:       pipeline,
		Engine:         engine,
		Tracker:        tracker,
		ReembedService: reembedSvc,
		Embedder:       deps.embedder,
		AuthToken:             cfg.Server.AuthToken,
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		MaxPageChars:          cfg.Crawl.MaxPageChars,
		SessionTimeoutSeconds: cfg.MCP.SessionTimeoutSeconds,
		MetricsHandler:        metrics.Handler(metrics.NewPrometheusExporter(queryMetrics)),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("archon server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
