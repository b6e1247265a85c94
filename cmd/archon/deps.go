package cmd

import (
	"context"
	"fmt"

	"github.com/archon-iirc/archon/internal/config"
	"github.com/archon-iirc/archon/internal/docproc"
	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/llm"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// appDeps bundles the collaborators shared by serve, doctor, ingest, and
// reembed: every subcommand other than version builds one of these from the
// same layered configuration.
type appDeps struct {
	cfg      *config.Config
	store    *vectorstore.SQLiteStore
	embedder embedding.Provider
	llmProv  llm.Provider
}

func buildDeps(ctx context.Context, cfg *config.Config) (*appDeps, error) {
	store, err := vectorstore.NewSQLiteStore(cfg.VectorDB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting vector store: %w", err)
	}

	embedder, err := embedding.New(cfg.Embeddings.Provider, cfg.Embeddings.OllamaHost, cfg.Embeddings.OpenAIKey, cfg.Embeddings.Model)
	if err != nil {
		store.Disconnect()
		return nil, fmt.Errorf("building embedding provider: %w", err)
	}
	embedder = embedding.NewCachedProvider(embedder, 1000)

	var llmProv llm.Provider
	if cfg.LLM.Provider != "" {
		llmProv, err = llm.New(llm.Config{
			Provider:          cfg.LLM.Provider,
			BaseURL:           cfg.LLM.OllamaHost,
			APIKey:            cfg.LLM.AnthropicKey,
			DefaultChatModel:  cfg.LLM.AgentModel,
			Region:            cfg.LLM.BedrockRegion,
		})
		if err != nil {
			llmProv = nil
		}
	}

	return &appDeps{cfg: cfg, store: store, embedder: embedder, llmProv: llmProv}, nil
}

func (d *appDeps) Close() error {
	return d.store.Disconnect()
}

// newDocumentProcessor builds the shared DocumentProcessor used by both the
// HTTP ingest path and the CLI's one-shot ingest command.
func newDocumentProcessor() *docproc.Processor {
	return docproc.New()
}
