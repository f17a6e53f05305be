package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgallion1/manualqa/internal/retry"
)

// OllamaClient calls a local Ollama server's generate endpoint.
type OllamaClient struct {
	baseURL         string
	model           string
	warmupTimeout   time.Duration
	generateTimeout time.Duration
	warmupAttempts  int
	warmupDelay     time.Duration
	warmed          atomic.Bool
	stats           *Stats
	log             *slog.Logger
	httpClient      *http.Client
}

// OllamaOptions configures an OllamaClient. Zero values take defaults.
type OllamaOptions struct {
	BaseURL         string
	Model           string
	WarmupTimeout   time.Duration
	GenerateTimeout time.Duration
	Stats           *Stats
	Log             *slog.Logger
}

func NewOllamaClient(opts OllamaOptions) *OllamaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://127.0.0.1:11434"
	}
	if opts.WarmupTimeout <= 0 {
		opts.WarmupTimeout = 25 * time.Second
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 300 * time.Second
	}
	if opts.Stats == nil {
		opts.Stats = NewStats(time.Hour)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &OllamaClient{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		model:           opts.Model,
		warmupTimeout:   opts.WarmupTimeout,
		generateTimeout: opts.GenerateTimeout,
		warmupAttempts:  3,
		warmupDelay:     2 * time.Second,
		stats:           opts.Stats,
		log:             opts.Log,
		httpClient:      &http.Client{},
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (c *OllamaClient) Model() string { return c.model }

// Stats returns the latency window shared by this client.
func (c *OllamaClient) Stats() *Stats { return c.stats }

// Warmed reports whether a warm-up call has succeeded.
func (c *OllamaClient) Warmed() bool { return c.warmed.Load() }

// Warmup sends a single-token prompt so the model is resident before the
// first question. It tries a few times before giving up.
func (c *OllamaClient) Warmup(ctx context.Context) error {
	req := ollamaRequest{
		Model:   c.model,
		Prompt:  "ok",
		Options: map[string]any{"num_predict": 1},
	}

	var lastErr error
	for attempt := 1; attempt <= c.warmupAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.warmupTimeout)
		_, lastErr = c.post(callCtx, req)
		cancel()
		if lastErr == nil {
			c.warmed.Store(true)
			c.log.Info("model warmed", "model", c.model, "attempt", attempt)
			return nil
		}
		c.log.Warn("warm-up attempt failed", "model", c.model, "attempt", attempt, "error", lastErr)
		if attempt < c.warmupAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.warmupDelay):
			}
		}
	}
	c.warmed.Store(false)
	return fmt.Errorf("warm up %s: %w", c.model, lastErr)
}

// Generate runs a non-streaming completion. A cold client warms itself first;
// a failed warm-up is logged and generation proceeds anyway.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (Generation, error) {
	if !c.warmed.Load() {
		if err := c.Warmup(ctx); err != nil {
			c.log.Error("warm-up before generate failed", "error", err)
		}
	}

	req := ollamaRequest{
		Model:  c.model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": 0.1,
			"top_p":       0.9,
			"num_ctx":     4096,
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.post(callCtx, req)
	latency := roundMs(time.Since(start))
	if err != nil {
		return Generation{LatencyMs: latency}, err
	}
	c.stats.Record(latency)
	c.log.Info("generation completed", "model", c.model, "duration_ms", latency)
	return Generation{Text: text, LatencyMs: latency}, nil
}

func (c *OllamaClient) post(ctx context.Context, req ollamaRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &retry.Error{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out ollamaResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", ErrInvalidResponse
	}
	return out.Response, nil
}

// Close releases resources.
func (c *OllamaClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func roundMs(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
