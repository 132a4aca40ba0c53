package controller

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bootiful-ai/carina-rag/config"
	"github.com/bootiful-ai/carina-rag/providers"
	"github.com/bootiful-ai/carina-rag/services"
	"github.com/bootiful-ai/carina-rag/stores"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"pdf":       "pdf.path",
	"output":    "output.path",
	"top-k":     "query.top_k",
	"store":     "store.type",
	"log-level": "log.level",
}

// load binds the flags present on cmd and resolves the configuration.
func (c *RAGController) load(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := config.Load(v, c.configFile)
	if err != nil {
		return nil, err
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildService constructs every collaborator up front and hands them to the
// service. The returned func releases the store.
func buildService(ctx context.Context, cfg *config.Config) (services.RAGService, func(), error) {
	loader := services.NewPDFLoader(services.PDFLoaderConfig{
		BottomLines: cfg.PDF.BottomLines,
		TopLines:    cfg.PDF.TopLines,
		SkipPages:   cfg.PDF.SkipPages,
	})

	splitter, err := newSplitter(cfg.Splitter)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := providers.NewEmbedder(ctx, providers.Options{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		return nil, nil, err
	}

	chat, err := providers.NewChatClient(ctx, providers.ChatOptions{
		Options: providers.Options{
			Provider: cfg.Chat.Provider,
			Model:    cfg.Chat.Model,
			BaseURL:  cfg.Chat.BaseURL,
			APIKey:   cfg.Chat.APIKey,
		},
		Temperature: cfg.Chat.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}

	fileActions, err := services.NewFileActions(".")
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(ctx, cfg.Store, embedder)
	if err != nil {
		return nil, nil, err
	}

	svc := services.NewRAGService(loader, splitter, store, chat, fileActions, services.RAGConfig{
		TopK:        cfg.Query.TopK,
		ChatTimeout: cfg.Chat.Timeout,
	})
	closeFn := func() {
		if err := store.Close(); err != nil {
			logrus.WithField("component", "store").Warnf("Failed to close vector store: %v", err)
		}
	}
	return svc, closeFn, nil
}

func newSplitter(cfg config.SplitterConfig) (services.TextSplitter, error) {
	switch cfg.Type {
	case "recursive":
		return services.NewRecursiveSplitter(cfg.ChunkSize, cfg.ChunkOverlap), nil
	case "token", "":
		splitter, err := services.NewTokenSplitter(services.TokenSplitterConfig{
			Encoding:              cfg.Encoding,
			ChunkSize:             cfg.ChunkSize,
			MinChunkSizeChars:     cfg.MinChunkSizeChars,
			MinChunkLengthToEmbed: cfg.MinChunkLengthToEmbed,
			MaxNumChunks:          cfg.MaxNumChunks,
			KeepSeparator:         cfg.KeepSeparator,
		})
		if err != nil {
			return nil, err
		}
		return splitter, nil
	default:
		return nil, fmt.Errorf("unknown splitter: %s", cfg.Type)
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, embedder stores.Embedder) (stores.VectorStore, error) {
	var (
		store stores.VectorStore
		err   error
	)
	switch cfg.Type {
	case "sqlite", "":
		store, err = stores.OpenSQLite(cfg.SQLite.Path, embedder)
	case "chroma":
		store, err = stores.OpenChroma(ctx, cfg.Chroma.URL, cfg.Chroma.Collection, embedder)
	case "pgvector":
		store, err = stores.OpenPgVector(ctx, cfg.PgVector.DSN, cfg.PgVector.Table, cfg.PgVector.Dimensions, embedder)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
