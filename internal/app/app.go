package app

import (
	"context"
	"time"

	"github.com/capless/moments/internal/chunker"
	"github.com/capless/moments/internal/config"
	"github.com/capless/moments/internal/dedup"
	"github.com/capless/moments/internal/embedder"
	"github.com/capless/moments/internal/extractor"
	"github.com/capless/moments/internal/pipeline"
	"github.com/capless/moments/internal/rerank"
	"github.com/capless/moments/internal/selector"
	"github.com/capless/moments/internal/store"
)

// App is the main application container holding all dependencies.
type App struct {
	Config   *config.Config
	Tuning   config.Tuning
	Store    *store.Store
	Embedder *embedder.Embedder
	Client   *extractor.Client
	Pipeline *pipeline.Pipeline
}

// New creates a new application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		return nil, err
	}

	// Create database connection
	st, err := store.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	// Create embedder
	emb := embedder.New(embedder.Config{
		Host:  cfg.OllamaHost,
		Model: cfg.OllamaModel,
	})

	// Create extraction client
	client := extractor.NewClient(extractor.ClientConfig{
		BaseURL:     cfg.ExtractionAPIURL,
		APIKey:      cfg.ExtractionAPIKey,
		Model:       cfg.ExtractionModel,
		Timeout:     2 * time.Minute,
		MaxAttempts: uint64(tuning.Extraction.MaxAttempts),
	})

	p := pipeline.New(
		chunker.New(tuning.Chunking),
		extractor.New(client, tuning.Extraction.PerChunkCap),
		dedup.New(emb, tuning.Dedup),
		rerank.New(client, tuning.Rerank),
		selector.New(tuning.Selection),
		tuning.PipelineConfig(),
	)

	return &App{
		Config:   cfg,
		Tuning:   tuning,
		Store:    st,
		Embedder: emb,
		Client:   client,
		Pipeline: p,
	}, nil
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
