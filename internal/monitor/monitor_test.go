package monitor

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"signalforge/internal/database"
	"signalforge/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return db
}

func TestRecordAgentResult_MovesFromBaseline(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)

	quality, err := m.RecordAgentResult(context.Background(), "run-1", "trend_analyst", 1.5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(quality-6.5) > 0.001 {
		t.Errorf("expected baseline 5.0 + 1.5 = 6.5, got %v", quality)
	}
}

func TestRecordAgentResult_FailedKeepsQuality(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)
	ctx := context.Background()

	if _, err := m.RecordAgentResult(ctx, "run-1", "screenwriter", 2.0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(time.Millisecond) // distinct sample timestamps

	quality, err := m.RecordAgentResult(ctx, "run-2", "screenwriter", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(quality-7.0) > 0.001 {
		t.Errorf("failed training must keep quality at 7.0, got %v", quality)
	}

	samples, err := db.RecentMetrics(ctx, "screenwriter", 1)
	if err != nil || len(samples) != 1 {
		t.Fatalf("expected latest sample, got %v (%v)", samples, err)
	}
	if samples[0].Trained {
		t.Error("failed training must be marked untrained")
	}
}

func TestRecordAgentResult_ClampsAtTen(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)

	quality, err := m.RecordAgentResult(context.Background(), "run-1", "music_producer", 50, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quality != 10 {
		t.Errorf("expected clamp at 10, got %v", quality)
	}
}

func TestSystemQuality_MeanOfLatestPerAgent(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	samples := []models.AgentMetricSample{
		{AgentID: "trend_analyst", Timestamp: base, QualityScore: 6.0},
		{AgentID: "music_producer", Timestamp: base, QualityScore: 8.0},
		{AgentID: database.SystemAgentID, Timestamp: base, QualityScore: 1.0},
	}
	for _, s := range samples {
		if err := db.InsertMetric(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	quality, err := m.SystemQuality(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(quality-7.0) > 0.001 {
		t.Errorf("expected mean 7.0 excluding system samples, got %v", quality)
	}
}

func TestSystemQuality_BaselineWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)

	quality, err := m.SystemQuality(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quality != baselineQuality {
		t.Errorf("expected baseline %v with no samples, got %v", baselineQuality, quality)
	}
}

func TestSummary_TrendAndAttention(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	// Prior system window sits near 5; current agent fleet averages well
	// above it, so the trend must read as improving.
	for i, q := range []float64{5.0, 5.1, 4.9} {
		s := models.AgentMetricSample{AgentID: database.SystemAgentID, Timestamp: base.Add(time.Duration(i) * time.Minute), QualityScore: q, TrainingRunID: "run-x", Trained: true}
		if err := db.InsertMetric(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	agentSamples := []models.AgentMetricSample{
		{AgentID: "trend_analyst", Timestamp: base, QualityScore: 8.0, Trained: true},
		{AgentID: "music_producer", Timestamp: base, QualityScore: 7.0, Trained: true},
		{AgentID: "screenwriter", Timestamp: base, QualityScore: 3.0, Trained: true},  // below floor
		{AgentID: "video_director", Timestamp: base, QualityScore: 6.0, Trained: false}, // failed last run
	}
	for _, s := range agentSamples {
		if err := db.InsertMetric(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	summary, err := m.Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Trend != models.TrendUp {
		t.Errorf("expected improving trend, got %s", summary.Trend)
	}
	if summary.LastRunAt == nil {
		t.Error("expected last run timestamp from system samples")
	}

	needsCare := make(map[string]bool)
	for _, id := range summary.AgentsNeedingCare {
		needsCare[id] = true
	}
	if !needsCare["screenwriter"] {
		t.Error("agent below the attention floor must need care")
	}
	if !needsCare["video_director"] {
		t.Error("agent that failed its last training must need care")
	}
	if needsCare["trend_analyst"] || needsCare["music_producer"] {
		t.Errorf("healthy agents flagged: %v", summary.AgentsNeedingCare)
	}
}

func TestSummary_AttentionCoversRecentFailures(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	// sound_designer failed a run inside the window but recovered since;
	// it must still be flagged. trend_analyst trained cleanly throughout.
	samples := []models.AgentMetricSample{
		{AgentID: "sound_designer", Timestamp: base, QualityScore: 6.0, TrainingRunID: "run-1", Trained: false},
		{AgentID: "sound_designer", Timestamp: base.Add(time.Minute), QualityScore: 6.5, TrainingRunID: "run-2", Trained: true},
		{AgentID: "trend_analyst", Timestamp: base, QualityScore: 8.0, TrainingRunID: "run-1", Trained: true},
		{AgentID: "trend_analyst", Timestamp: base.Add(time.Minute), QualityScore: 8.2, TrainingRunID: "run-2", Trained: true},
	}
	for _, s := range samples {
		if err := db.InsertMetric(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	summary, err := m.Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.AgentsNeedingCare) != 1 || summary.AgentsNeedingCare[0] != "sound_designer" {
		t.Errorf("expected only sound_designer flagged for a failure in the window, got %v", summary.AgentsNeedingCare)
	}
}

func TestSummary_NextRunComesFromScheduler(t *testing.T) {
	db := newTestDB(t)
	next := time.Now().Add(2 * time.Hour)
	m := New(db, 4.0, 3, func() *time.Time { return &next })

	summary, err := m.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.NextScheduledRun == nil || !summary.NextScheduledRun.Equal(next) {
		t.Errorf("expected next run %v, got %v", next, summary.NextScheduledRun)
	}
}

func TestRenderReport_CarriesRunAndHealth(t *testing.T) {
	db := newTestDB(t)
	m := New(db, 4.0, 3, nil)

	run := &models.TrainingRun{
		ID:                  "run-42",
		Status:              models.RunStatusPartial,
		TotalTimeMs:         1234,
		SystemQualityBefore: 5.0,
		SystemQualityAfter:  5.6,
		AgentsTrained:       []string{"trend_analyst"},
		AgentsFailed:        []models.AgentFailure{{AgentID: "music_producer", Reason: "timeout after 5m0s"}},
		PhaseResults: []models.PhaseResult{
			{Phase: models.PhaseHarvesting, Status: "completed", DurationMs: 100},
		},
	}
	summary := &models.HealthSummary{SystemQuality: 5.6, Trend: models.TrendUp, AgentsNeedingCare: []string{"music_producer"}}

	report := m.RenderReport(run, summary)
	for _, want := range []string{"run-42", "partial", "trend_analyst", "music_producer", "timeout after 5m0s", "harvesting"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
