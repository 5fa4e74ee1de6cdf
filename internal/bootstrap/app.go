// Package bootstrap assembles all components once at process start.
// There is no ambient global state: everything is constructed here and
// threaded through explicitly.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pandaqa/internal/ai"
	"pandaqa/internal/chunker"
	"pandaqa/internal/config"
	"pandaqa/internal/index"
	"pandaqa/internal/logger"
	"pandaqa/internal/retriever"
)

type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Splitter  *chunker.Splitter
	Embedder  ai.Embedder
	Generator ai.Generator
	Index     *index.Index
	Retriever *retriever.Retriever

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	embedder := ai.NewOpenAIEmbedder(ai.EmbedderConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	}, log)

	generator := ai.NewLMStudioGenerator(ai.GeneratorConfig{
		BaseURL:     cfg.LMStudio.BaseURL,
		APIKey:      cfg.LMStudio.APIKey,
		Model:       cfg.LMStudio.Model,
		MaxTokens:   cfg.LMStudio.MaxTokens,
		Temperature: cfg.LMStudio.Temperature,
	}, log)

	splitter := chunker.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, log)
	idx := index.New(embedder, log)
	ret := retriever.New(idx, generator, cfg.Search.DefaultTopK, log)

	// reachability is informational at startup; the service runs either way
	if status := generator.CheckConnection(ctx); status.Connected {
		log.Info("language model backend reachable", zap.String("api_base", cfg.LMStudio.BaseURL))
	} else {
		log.Warn("language model backend not reachable", zap.String("message", status.Message))
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Splitter:  splitter,
		Embedder:  embedder,
		Generator: generator,
		Index:     idx,
		Retriever: ret,
		StartedAt: time.Now(),
	}, nil
}

func (a *App) Close() error {
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return nil
}
