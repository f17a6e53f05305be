package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_K", "MAX_TURNS", "LLM_BACKEND", "VECTOR_BACKEND", "EMBED_BACKEND"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.ChunkSize != 950 || cfg.ChunkOverlap != 150 {
		t.Errorf("chunking defaults: got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RetrievalK != 5 {
		t.Errorf("expected k=5, got %d", cfg.RetrievalK)
	}
	if cfg.MaxTurns != 10 {
		t.Errorf("expected max turns 10, got %d", cfg.MaxTurns)
	}
	if cfg.WarmupTimeout != 25*time.Second || cfg.GenerateTimeout != 300*time.Second {
		t.Errorf("timeouts: got %s/%s", cfg.WarmupTimeout, cfg.GenerateTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("MAX_TURNS", "3")
	t.Setenv("GENERATE_TIMEOUT", "90s")
	t.Setenv("VECTOR_BACKEND", "memory")

	cfg := Load()
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Errorf("got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MaxTurns != 3 {
		t.Errorf("expected 3, got %d", cfg.MaxTurns)
	}
	if cfg.GenerateTimeout != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.GenerateTimeout)
	}
	if cfg.VectorBackend != "memory" {
		t.Errorf("expected memory, got %s", cfg.VectorBackend)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RETRIEVAL_K", "lots")
	t.Setenv("WORKER_COUNT", "-1")
	cfg := Load()
	if cfg.RetrievalK != 5 {
		t.Errorf("expected fallback 5, got %d", cfg.RetrievalK)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected fallback 2, got %d", cfg.WorkerCount)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		ChunkSize: 950, ChunkOverlap: 150,
		LLMBackend: "ollama", EmbedBackend: "ollama", VectorBackend: "sqlite",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = 950 }, true},
		{"anthropic without key", func(c *Config) { c.LLMBackend = "anthropic" }, true},
		{"anthropic with key", func(c *Config) { c.LLMBackend = "anthropic"; c.AnthropicAPIKey = "k" }, false},
		{"unknown llm", func(c *Config) { c.LLMBackend = "gpt" }, true},
		{"hashing zero dim", func(c *Config) { c.EmbedBackend = "hashing" }, true},
		{"unknown vector", func(c *Config) { c.VectorBackend = "chroma" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	if p.Brand != "Tesla" {
		t.Errorf("brand: got %q", p.Brand)
	}
	if p.Source != "Tesla Model 3 Owner's Manual" {
		t.Errorf("source: got %q", p.Source)
	}
	if len(p.Chapters) != 13 {
		t.Errorf("expected 13 chapters, got %d", len(p.Chapters))
	}
	sorted := p.SortedChapters()
	if sorted[0] != "Autopilot" || sorted[len(sorted)-1] != "Warning" {
		t.Errorf("unexpected order: %v", sorted)
	}
	if p.Chapters[0] != "Overview" {
		t.Error("SortedChapters must not reorder the profile")
	}

	detect := p.DetectableChapters()
	if len(detect) != 10 {
		t.Errorf("expected 10 query chapters, got %d: %v", len(detect), detect)
	}
	for _, c := range detect {
		if c == "Overview" || c == "Troubleshooting" || c == "Emergency" {
			t.Errorf("%s must not be selectable from a question", c)
		}
	}
}

func TestProfile_DetectableChaptersDefaultsToAll(t *testing.T) {
	p := Profile{Source: "X", Chapters: []string{"Brakes", "Lights"}}
	if got := p.DetectableChapters(); len(got) != 2 || got[0] != "Brakes" {
		t.Errorf("DetectableChapters() = %v", got)
	}
}

func TestLoadProfile_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	data := "name: test\nsource: Test Manual\nbrand: Acme\nchapters: [Brakes, Lights]\nheading_exclusions: [Acme]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Brand != "Acme" || len(p.Chapters) != 2 || p.HeadingExclusions[0] != "Acme" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestLoadProfile_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"nochapters.yaml": "source: X\n",
		"dup.yaml":        "source: X\nchapters: [Brakes, brakes]\n",
		"nosource.yaml":   "chapters: [Brakes]\n",
		"badquery.yaml":   "source: X\nchapters: [Brakes]\nquery_chapters: [Lights]\n",
		"bad.yaml":        "chapters: [unterminated\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadProfile(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadProfile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
