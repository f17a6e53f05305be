package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgallion1/manualqa/internal/retry"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	warmed     atomic.Bool
	stats      *Stats
	log        *slog.Logger
	httpClient *http.Client
}

func NewClaudeClient(apiKey, model string, timeout time.Duration, stats *Stats, log *slog.Logger) *ClaudeClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &ClaudeClient{
		apiKey:    apiKey,
		model:     model,
		endpoint:  anthropicURL,
		maxTokens: 1024,
		stats:     stats,
		log:       log,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeClient) Model() string { return c.model }

// Stats returns the latency window shared by this client.
func (c *ClaudeClient) Stats() *Stats { return c.stats }

// Warmed reports whether a warm-up call has succeeded.
func (c *ClaudeClient) Warmed() bool { return c.warmed.Load() }

// Warmup verifies credentials and reachability with a one-token request.
func (c *ClaudeClient) Warmup(ctx context.Context) error {
	if _, err := c.send(ctx, "ok", 1); err != nil {
		return fmt.Errorf("warm up %s: %w", c.model, err)
	}
	c.warmed.Store(true)
	c.log.Info("model warmed", "model", c.model)
	return nil
}

// Generate sends the prompt as a single user message.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (Generation, error) {
	start := time.Now()
	text, err := c.send(ctx, prompt, c.maxTokens)
	latency := roundMs(time.Since(start))
	if err != nil {
		return Generation{LatencyMs: latency}, err
	}
	c.stats.Record(latency)
	c.log.Info("generation completed", "model", c.model, "duration_ms", latency)
	return Generation{Text: text, LatencyMs: latency}, nil
}

func (c *ClaudeClient) send(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: 0.1,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
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
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", ErrInvalidResponse
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 && maxTokens > 1 {
		return "", fmt.Errorf("empty response from claude: %w", ErrInvalidResponse)
	}
	return sb.String(), nil
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}
