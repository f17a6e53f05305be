package main

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/manualqa/internal/assistant"
	"github.com/dgallion1/manualqa/internal/chunker"
	"github.com/dgallion1/manualqa/internal/cleaner"
	"github.com/dgallion1/manualqa/internal/config"
	"github.com/dgallion1/manualqa/internal/embedding"
	"github.com/dgallion1/manualqa/internal/llm"
	"github.com/dgallion1/manualqa/internal/parser"
	"github.com/dgallion1/manualqa/internal/pipeline"
	"github.com/dgallion1/manualqa/internal/retrieval"
	"github.com/dgallion1/manualqa/internal/structure"
	"github.com/dgallion1/manualqa/internal/vectorstore"
	"github.com/dgallion1/manualqa/internal/vectorstore/memory"
	"github.com/dgallion1/manualqa/internal/vectorstore/qdrant"
	"github.com/dgallion1/manualqa/internal/vectorstore/sqlite"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg     config.Config
	profile config.Profile
	log     *slog.Logger

	index     *vectorstore.Index
	generator llm.Generator
	stats     *llm.Stats
	assistant *assistant.Assistant
	sessions  *assistant.SessionStore

	closers []func()
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, profile: profile, log: log, stats: llm.NewStats(0)}

	embedder, err := embedding.New(cfg.EmbedBackend, cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDimension)
	if err != nil {
		return nil, err
	}
	if c, ok := embedder.(interface{ Close() }); ok {
		a.closers = append(a.closers, c.Close)
	}

	store, err := openStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { store.Close() })
	a.index = vectorstore.NewIndex(store, embedder, log)

	switch cfg.LLMBackend {
	case "anthropic":
		c := llm.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.GenerateTimeout, a.stats, log)
		a.generator = c
		a.closers = append(a.closers, c.Close)
	default:
		c := llm.NewOllamaClient(llm.OllamaOptions{
			BaseURL:         cfg.OllamaURL,
			Model:           cfg.LLMModel,
			WarmupTimeout:   cfg.WarmupTimeout,
			GenerateTimeout: cfg.GenerateTimeout,
			Stats:           a.stats,
			Log:             log,
		})
		a.generator = c
		a.closers = append(a.closers, c.Close)
	}

	retriever := retrieval.New(a.index, cfg.RetrievalK, log)
	a.assistant = assistant.New(retriever, a.generator, assistant.Options{
		Chapters: profile.DetectableChapters(),
		K:        cfg.RetrievalK,
		Template: llm.PromptTemplate{Product: profile.Product, Brand: profile.Brand, Source: profile.Source},
	}, log)
	a.sessions = assistant.NewSessionStore(cfg.SessionTTL, cfg.MaxTurns)

	log.Debug("components ready",
		"embedder", embedder.Name(),
		"vector_backend", cfg.VectorBackend,
		"llm_backend", cfg.LLMBackend,
		"model", a.generator.Model(),
		"profile", profile.Name,
	)
	return a, nil
}

func openStore(cfg config.Config) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "memory":
		return memory.New(), nil
	case "qdrant":
		return qdrant.New(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

// workerConfig builds the ingestion settings for the loaded profile.
func (a *app) workerConfig() pipeline.WorkerConfig {
	return pipeline.WorkerConfig{
		Normalizer: cleaner.New(a.profile.Brand),
		Extractor:  structure.NewExtractor(a.profile),
		Chunking: chunker.Config{
			ChunkSize:    a.cfg.ChunkSize,
			ChunkOverlap: a.cfg.ChunkOverlap,
			Source:       a.profile.Source,
		},
		Parser: parser.Options{
			FallbackPdftotext: a.cfg.PDFFallbackPdftotext,
			Log:               a.log,
		},
		MaxConcurrentEmbed: a.cfg.MaxConcurrentEmbed,
		ReplaceIndex:       true,
	}
}

// llmStats adapts the generator for the stats endpoint.
type llmStats struct {
	model string
	stats *llm.Stats
}

func (s llmStats) Model() string      { return s.model }
func (s llmStats) Stats() *llm.Stats { return s.stats }

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
