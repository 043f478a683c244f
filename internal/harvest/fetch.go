package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"signalforge/internal/models"
	"signalforge/internal/retry"
)

// Fetcher performs rate-limited JSON GETs against source endpoints.
// Two tiers of limiting: a global cap protecting our egress, and a
// per-host cap respecting each upstream API.
type Fetcher struct {
	client          *http.Client
	globalLimiter   *rate.Limiter
	perHostLimiters *sync.Map // map[string]*rate.Limiter
	perHostRate     float64
	retryPolicy     retry.Policy
}

// NewFetcher creates a fetcher with a global requests/second budget.
func NewFetcher(globalRate float64) *Fetcher {
	// A fractional rate truncates to burst 0, which would starve every
	// Wait; one token must always be available.
	burst := int(globalRate * 2)
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		globalLimiter:   rate.NewLimiter(rate.Limit(globalRate), burst),
		perHostLimiters: &sync.Map{},
		perHostRate:     2, // 2 req/s per upstream host, burst 4
		retryPolicy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
	}
}

func (f *Fetcher) hostLimiter(host string) *rate.Limiter {
	if limiter, ok := f.perHostLimiters.Load(host); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(f.perHostRate), int(f.perHostRate*2))
	actual, _ := f.perHostLimiters.LoadOrStore(host, limiter)
	return actual.(*rate.Limiter)
}

// FetchJSON GETs one source endpoint and decodes the response into a list
// of raw items. An upstream "no data" response (404, 204, empty body, empty
// array) returns an empty list and no error. Transport-level failures are
// retried with backoff and surface as a *TransportError once exhausted.
func (f *Fetcher) FetchJSON(ctx context.Context, src models.SourceEndpoint) ([]map[string]any, error) {
	parsed, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL %q: %w", src.URL, err)
	}

	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := f.hostLimiter(parsed.Host).Wait(ctx); err != nil {
		return nil, err
	}

	var items []map[string]any
	err = retry.Do(ctx, f.retryPolicy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return retry.Abort(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "signalforge/1.0")
		if src.APIKeyEnv != "" {
			if key := os.Getenv(src.APIKeyEnv); key != "" {
				req.Header.Set("Authorization", "Bearer "+key)
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
			items = nil
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("source %s returned HTTP %d", src.Name, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return retry.Abort(fmt.Errorf("source %s returned HTTP %d", src.Name, resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return err
		}

		items, err = decodeItems(body)
		if err != nil {
			return retry.Abort(fmt.Errorf("source %s returned malformed JSON: %w", src.Name, err))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Source: src.Name, Err: err}
	}

	return items, nil
}

// decodeItems accepts either a bare JSON array or an object wrapping the
// array under a conventional key ("items", "data", "results").
func decodeItems(body []byte) ([]map[string]any, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var direct []map[string]any
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range []string{"items", "data", "results"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []map[string]any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, nil
}
