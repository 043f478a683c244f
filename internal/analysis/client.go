// Package analysis adapts the external generative-analysis service.
// The client is stateless, rate-limited and retried; callers treat it as
// text in, structured JSON out.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"signalforge/internal/retry"
)

// ModelConfig selects the model and generation parameters.
type ModelConfig struct {
	Name        string
	Temperature float64
	MaxTokens   int
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       ModelConfig
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryPolicy retry.Policy
}

// New constructs an analysis client. It is built once at startup and
// passed to every component that needs analysis, never a singleton.
func New(baseURL, apiKey string, model ModelConfig, maxRetries int, rps float64) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
		retryPolicy: retry.Policy{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze sends prompt to the model and returns a structured JSON string.
// Malformed model output is recovered into {"raw_text": ...} rather than
// failing the caller. An empty prompt is structurally invalid and fails
// fast without retrying.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("analysis prompt must not be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var content string
	err := retry.Do(ctx, c.retryPolicy, func(ctx context.Context) error {
		var err error
		content, err = c.complete(ctx, prompt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}

	return normalizeOutput(content), nil
}

// complete performs one chat completion round trip.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model.Name,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.model.Temperature,
		MaxTokens:   c.model.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", retry.Abort(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", retry.Abort(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("analysis service returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", retry.Abort(fmt.Errorf("analysis service returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("analysis service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("analysis response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// normalizeOutput guarantees the returned string is a JSON object. Models
// sometimes wrap JSON in markdown fences or emit prose; both degrade to a
// minimal structure carrying the raw text.
func normalizeOutput(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var probe map[string]any
	if err := json.Unmarshal([]byte(trimmed), &probe); err == nil {
		return trimmed
	}

	log.Printf("⚠️ [ANALYSIS] Model returned non-JSON output (%d chars), wrapping as raw_text", len(content))
	fallback, _ := json.Marshal(map[string]string{"raw_text": content})
	return string(fallback)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
