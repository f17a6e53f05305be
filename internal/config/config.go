package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth (disabled when empty)
	APIKey string

	// Manual
	ProfilePath string
	PDFPath     string

	// Generation
	LLMBackend      string
	OllamaURL       string
	LLMModel        string
	AnthropicAPIKey string
	AnthropicModel  string
	WarmupTimeout   time.Duration
	GenerateTimeout time.Duration

	// Embedding
	EmbedBackend   string
	EmbedModel     string
	EmbedDimension int

	// Vector index
	VectorBackend    string
	SQLitePath       string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Chunking and retrieval
	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int
	MaxTurns     int

	// Ingestion worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentEmbed int
	MaxUploadBytes     int64

	// State retention
	JobTTL     time.Duration
	SessionTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("MANUALQA_API_KEY"),

		ProfilePath: os.Getenv("MANUAL_PROFILE"),
		PDFPath:     envOr("PDF_PATH", "./data/Owners_Manual.pdf"),

		LLMBackend:      envOr("LLM_BACKEND", "ollama"),
		OllamaURL:       envOr("OLLAMA_URL", "http://127.0.0.1:11434"),
		LLMModel:        envOr("LLM_MODEL", "llama3.1:8b-instruct-q4_K_M"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		WarmupTimeout:   envDuration("WARMUP_TIMEOUT", 25*time.Second),
		GenerateTimeout: envDuration("GENERATE_TIMEOUT", 300*time.Second),

		EmbedBackend:   envOr("EMBED_BACKEND", "ollama"),
		EmbedModel:     envOr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDimension: envInt("EMBED_DIMENSION", 384),

		VectorBackend:    envOr("VECTOR_BACKEND", "sqlite"),
		SQLitePath:       envOr("SQLITE_PATH", "./data/manualqa.db"),
		QdrantURL:        envOr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "tesla_manual_rag"),

		ChunkSize:    envInt("CHUNK_SIZE", 950),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 150),
		RetrievalK:   envInt("RETRIEVAL_K", 5),
		MaxTurns:     envInt("MAX_TURNS", 10),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 20),
		MaxConcurrentEmbed: envInt("MAX_CONCURRENT_EMBED", 4),
		MaxUploadBytes:     envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL:     envDuration("JOB_TTL", 1*time.Hour),
		SessionTTL: envDuration("SESSION_TTL", 24*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 950
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 150
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 5
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	switch c.LLMBackend {
	case "ollama":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for LLM_BACKEND=anthropic")
		}
	default:
		return fmt.Errorf("unknown LLM_BACKEND %q", c.LLMBackend)
	}
	switch c.EmbedBackend {
	case "ollama":
	case "hashing":
		if c.EmbedDimension <= 0 {
			return fmt.Errorf("EMBED_DIMENSION must be positive")
		}
	default:
		return fmt.Errorf("unknown EMBED_BACKEND %q", c.EmbedBackend)
	}
	switch c.VectorBackend {
	case "memory", "sqlite", "qdrant":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
