package training

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signalforge/internal/models"
)

func TestNewHTTPAgent_UnknownID(t *testing.T) {
	if _, err := NewHTTPAgent("poet", "http://localhost:4500"); err == nil {
		t.Fatal("expected error for unknown agent id")
	}
}

func TestHTTPAgent_TrainRoundTrip(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(models.TrainOutcome{QualityImprovement: 0.7, RecordsConsumed: 2})
	}))
	defer srv.Close()

	agent, err := NewHTTPAgent("trend_analyst", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.SourceType() != models.SourceTrend {
		t.Errorf("expected trend slice for trend_analyst, got %s", agent.SourceType())
	}

	slice := []models.HarvestedRecord{
		rec(models.SourceTrend, "https://t.example/1", 9.0),
		rec(models.SourceTrend, "https://t.example/2", 8.0),
	}
	outcome, err := agent.Train(context.Background(), slice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.QualityImprovement != 0.7 || outcome.RecordsConsumed != 2 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if gotPath != "/agents/trend_analyst/train" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody["agentId"] != "trend_analyst" {
		t.Errorf("unexpected request body: %v", gotBody)
	}
}

func TestHTTPAgent_TrainServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent, err := NewHTTPAgent("screenwriter", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := agent.Train(context.Background(), nil); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestNewRegistry_PreservesOrder(t *testing.T) {
	order := []string{"trend_analyst", "sound_designer", "music_producer"}
	registry, err := NewRegistry(order, "http://localhost:4500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agents := registry.Ordered()
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	for i, id := range order {
		if agents[i].ID() != id {
			t.Errorf("expected %s at position %d, got %s", id, i, agents[i].ID())
		}
	}
}

func TestNewRegistry_FailsOnUnknownAgent(t *testing.T) {
	if _, err := NewRegistry([]string{"trend_analyst", "poet"}, "http://localhost:4500"); err == nil {
		t.Fatal("expected error for unknown agent in order")
	}
}
