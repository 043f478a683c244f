package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"signalforge/internal/models"
)

// Agent is an external trainable collaborator. Each agent consumes the
// filtered data slice of exactly one source type and exposes one
// operation: train.
type Agent interface {
	ID() string
	SourceType() models.SourceType
	Train(ctx context.Context, slice []models.HarvestedRecord) (models.TrainOutcome, error)
}

// agentSourceTypes maps each known agent to the data slice it trains on.
var agentSourceTypes = map[string]models.SourceType{
	"trend_analyst":           models.SourceTrend,
	"sound_designer":          models.SourceSound,
	"music_producer":          models.SourceAudio,
	"screenwriter":            models.SourceScreenplay,
	"video_director":          models.SourceCreator,
	"distribution_strategist": models.SourceDistribution,
}

// HTTPAgent talks to one agent process over its train endpoint.
type HTTPAgent struct {
	id         string
	sourceType models.SourceType
	baseURL    string
	client     *http.Client
}

// NewHTTPAgent builds an agent adapter for POST {baseURL}/agents/{id}/train.
func NewHTTPAgent(id, baseURL string) (*HTTPAgent, error) {
	sourceType, ok := agentSourceTypes[id]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", id)
	}
	return &HTTPAgent{
		id:         id,
		sourceType: sourceType,
		baseURL:    baseURL,
		client: &http.Client{
			// Per-call deadlines come from the trainer's context; this is
			// a hard backstop only.
			Timeout: 10 * time.Minute,
		},
	}, nil
}

func (a *HTTPAgent) ID() string                    { return a.id }
func (a *HTTPAgent) SourceType() models.SourceType { return a.sourceType }

// Train posts the data slice and decodes the agent's outcome.
func (a *HTTPAgent) Train(ctx context.Context, slice []models.HarvestedRecord) (models.TrainOutcome, error) {
	var outcome models.TrainOutcome

	body, err := json.Marshal(map[string]any{
		"agentId": a.id,
		"records": slice,
	})
	if err != nil {
		return outcome, err
	}

	url := fmt.Sprintf("%s/agents/%s/train", a.baseURL, a.id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return outcome, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return outcome, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return outcome, err
	}
	if resp.StatusCode != http.StatusOK {
		return outcome, fmt.Errorf("agent %s returned HTTP %d", a.id, resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, &outcome); err != nil {
		return outcome, fmt.Errorf("agent %s returned malformed outcome: %w", a.id, err)
	}
	return outcome, nil
}

// Registry holds the agents in their static dependency order: agents that
// consume another agent's output are trained after their dependency.
type Registry struct {
	ordered []Agent
}

// NewRegistry builds HTTP agents for the configured order.
func NewRegistry(order []string, baseURL string) (*Registry, error) {
	r := &Registry{}
	for _, id := range order {
		agent, err := NewHTTPAgent(id, baseURL)
		if err != nil {
			return nil, err
		}
		r.ordered = append(r.ordered, agent)
	}
	return r, nil
}

// NewRegistryFromAgents wraps pre-built agents (used by tests).
func NewRegistryFromAgents(agents ...Agent) *Registry {
	return &Registry{ordered: agents}
}

// Ordered returns agents in training order.
func (r *Registry) Ordered() []Agent {
	return r.ordered
}
