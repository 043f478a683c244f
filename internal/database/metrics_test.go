package database

import (
	"context"
	"testing"
	"time"

	"signalforge/internal/models"
)

func TestRecentMetrics_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, q := range []float64{5.0, 6.0, 7.0} {
		sample := models.AgentMetricSample{
			AgentID:      "trend_analyst",
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			QualityScore: q,
			Trained:      true,
		}
		if err := db.InsertMetric(ctx, sample); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := db.RecentMetrics(ctx, "trend_analyst", 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].QualityScore != 7.0 || got[1].QualityScore != 6.0 {
		t.Errorf("expected newest first (7.0, 6.0), got (%v, %v)", got[0].QualityScore, got[1].QualityScore)
	}
}

func TestInsertMetric_ReplacesSameKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ts := time.Now()

	for _, q := range []float64{5.0, 8.5} {
		if err := db.InsertMetric(ctx, models.AgentMetricSample{AgentID: "screenwriter", Timestamp: ts, QualityScore: q}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := db.RecentMetrics(ctx, "screenwriter", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 sample after replace, got %d", len(got))
	}
	if got[0].QualityScore != 8.5 {
		t.Errorf("expected replaced score 8.5, got %v", got[0].QualityScore)
	}
}

func TestLatestMetricPerAgent_ExcludesSystem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	samples := []models.AgentMetricSample{
		{AgentID: "trend_analyst", Timestamp: base, QualityScore: 5.0},
		{AgentID: "trend_analyst", Timestamp: base.Add(time.Minute), QualityScore: 6.5},
		{AgentID: "music_producer", Timestamp: base, QualityScore: 7.0},
		{AgentID: SystemAgentID, Timestamp: base.Add(2 * time.Minute), QualityScore: 9.9},
	}
	for _, s := range samples {
		if err := db.InsertMetric(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	latest, err := db.LatestMetricPerAgent(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 agents, got %d (%v)", len(latest), latest)
	}
	if _, ok := latest[SystemAgentID]; ok {
		t.Error("system pseudo-agent must be excluded")
	}
	if latest["trend_analyst"].QualityScore != 6.5 {
		t.Errorf("expected latest trend_analyst sample 6.5, got %v", latest["trend_analyst"].QualityScore)
	}
}
