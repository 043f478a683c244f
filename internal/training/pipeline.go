package training

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPipeline triggers the external content pipeline's end-to-end run.
// The pipeline service executes all agents in their declared dependency
// order; this adapter only starts it and waits for the outcome.
type HTTPPipeline struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPipeline builds the production-run adapter.
func NewHTTPPipeline(baseURL string) *HTTPPipeline {
	return &HTTPPipeline{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Minute,
		},
	}
}

// Run starts one full production pass and returns once it completes.
func (p *HTTPPipeline) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pipeline/run", nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("production pipeline unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("production pipeline returned HTTP %d", resp.StatusCode)
	}
	return nil
}
