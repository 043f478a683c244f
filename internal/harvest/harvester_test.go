package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
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

// stubHarvester is a configurable fake for exercising the shared Runner.
type stubHarvester struct {
	name       string
	st         models.SourceType
	sources    []models.SourceEndpoint
	parsed     []ParsedItem
	scores     map[string]float64
	extractErr error
	extracts   atomic.Int32
}

func newStubHarvester(st models.SourceType) *stubHarvester {
	return &stubHarvester{
		name:    string(st) + "_harvester",
		st:      st,
		sources: []models.SourceEndpoint{{Name: "stub", URL: "https://stub.example/feed"}},
		scores:  make(map[string]float64),
	}
}

func (h *stubHarvester) withItem(title, url string, score float64) *stubHarvester {
	h.parsed = append(h.parsed, ParsedItem{
		Title:     title,
		SourceURL: url,
		Fields:    map[string]any{"title": title, "url": url},
	})
	h.scores[title] = score
	return h
}

func (h *stubHarvester) Name() string                  { return h.name }
func (h *stubHarvester) SourceType() models.SourceType { return h.st }

func (h *stubHarvester) ListSources() []models.SourceEndpoint { return h.sources }

func (h *stubHarvester) ExtractRaw(ctx context.Context, source models.SourceEndpoint) ([]RawItem, error) {
	h.extracts.Add(1)
	if h.extractErr != nil {
		return nil, h.extractErr
	}
	return []RawItem{{Source: source}}, nil
}

func (h *stubHarvester) Parse(raw []RawItem) []ParsedItem { return h.parsed }

func (h *stubHarvester) Score(item ParsedItem) float64 { return h.scores[item.Title] }

func (h *stubHarvester) AnalysisPrompt(items []ParsedItem) string {
	return fmt.Sprintf("analyze %d items", len(items))
}

type stubAnalyzer struct {
	out   string
	err   error
	calls atomic.Int32
}

func (a *stubAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	a.calls.Add(1)
	if a.err != nil {
		return "", a.err
	}
	return a.out, nil
}

func TestRunner_ThresholdFiltersItems(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceTrend).
		withItem("excellent", "https://t.example/1", 9.5).
		withItem("good", "https://t.example/2", 8.0).
		withItem("poor", "https://t.example/3", 5.0).
		withItem("borderline", "https://t.example/4", 7.1)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 3 {
		t.Errorf("expected 3 records above threshold, got %d", result.Count)
	}
	for _, r := range result.Items {
		if r.QualityScore < 7.0 {
			t.Errorf("record %q persisted below threshold: %v", r.SourceURL, r.QualityScore)
		}
	}
}

func TestRunner_DuplicateURLsCoalescedInResult(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceDistribution).
		withItem("mirror a", "https://d.example/1", 8.0).
		withItem("mirror b", "https://d.example/1", 8.5).
		withItem("unique", "https://d.example/2", 9.0)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("expected duplicate URL coalesced to 2 records, got %d", result.Count)
	}
	if len(result.Items) != result.Count {
		t.Errorf("items must match the reported count, got %d items for count %d", len(result.Items), result.Count)
	}

	persisted, err := db.QueryRecords(context.Background(), database.RecordQuery{SourceType: models.SourceDistribution})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(persisted) != result.Count {
		t.Errorf("reported count %d must match %d persisted rows", result.Count, len(persisted))
	}
}

func TestRunner_PerTypeThresholdOverride(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)
	runner.SetThreshold(models.SourceTrend, 9.0)

	h := newStubHarvester(models.SourceTrend).
		withItem("excellent", "https://t.example/1", 9.5).
		withItem("good", "https://t.example/2", 8.0)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 1 {
		t.Errorf("expected 1 record above overridden threshold, got %d", result.Count)
	}
}

func TestRunner_FreshCacheShortCircuits(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	// Seed three fresh records, enough to satisfy the gate.
	now := time.Now().Add(-23 * time.Hour)
	var seed []models.HarvestedRecord
	for i := 0; i < 3; i++ {
		seed = append(seed, models.HarvestedRecord{
			SourceType:    models.SourceAudio,
			HarvesterName: "audio_harvester",
			RawPayload:    "{}",
			QualityScore:  8.0,
			SourceURL:     fmt.Sprintf("https://a.example/%d", i),
			HarvestedAt:   now,
			ExpiresAt:     now.Add(24 * time.Hour),
		})
	}
	if _, err := db.InsertHarvest(context.Background(), seed, models.HarvestLogEntry{HarvesterName: "audio_harvester", Status: models.HarvestLogSuccess}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	h := newStubHarvester(models.SourceAudio).withItem("live", "https://a.example/live", 9.0)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FromCache {
		t.Fatal("expected cached result inside the freshness window")
	}
	if result.Count != 3 {
		t.Errorf("expected 3 cached records, got %d", result.Count)
	}
	if h.extracts.Load() != 0 {
		t.Errorf("expected no source fetches on cache hit, got %d", h.extracts.Load())
	}

	// Force refresh bypasses the gate entirely.
	result, err = runner.Harvest(context.Background(), h, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FromCache {
		t.Error("forceRefresh must bypass the cache")
	}
	if h.extracts.Load() == 0 {
		t.Error("expected a live fetch on forceRefresh")
	}
}

func TestRunner_StaleCacheReharvests(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	old := time.Now().Add(-25 * time.Hour)
	var seed []models.HarvestedRecord
	for i := 0; i < 3; i++ {
		seed = append(seed, models.HarvestedRecord{
			SourceType:    models.SourceAudio,
			HarvesterName: "audio_harvester",
			RawPayload:    "{}",
			QualityScore:  8.0,
			SourceURL:     fmt.Sprintf("https://a.example/old/%d", i),
			HarvestedAt:   old,
			ExpiresAt:     old.Add(24 * time.Hour),
		})
	}
	if _, err := db.InsertHarvest(context.Background(), seed, models.HarvestLogEntry{HarvesterName: "audio_harvester", Status: models.HarvestLogSuccess}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	h := newStubHarvester(models.SourceAudio).withItem("live", "https://a.example/live", 9.0)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FromCache {
		t.Error("expected stale data to trigger a live harvest")
	}
	if h.extracts.Load() == 0 {
		t.Error("expected a live fetch for stale data")
	}
}

func TestRunner_AnalysisFailureIsBestEffort(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	analyzer := &stubAnalyzer{err: errors.New("model unavailable")}
	runner := NewRunner(db, gate, analyzer, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceTrend).withItem("item", "https://t.example/1", 9.0)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("analysis failure must not fail the harvest: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("expected 1 record, got %d", result.Count)
	}
	if result.Items[0].AnalyzedPayload != "" {
		t.Errorf("expected empty analyzed payload, got %q", result.Items[0].AnalyzedPayload)
	}
	if analyzer.calls.Load() != 1 {
		t.Errorf("expected exactly 1 analysis attempt, got %d", analyzer.calls.Load())
	}
}

func TestRunner_AnalysisAttachedToRecords(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	analyzer := &stubAnalyzer{out: `{"summary":"strong signals"}`}
	runner := NewRunner(db, gate, analyzer, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceTrend).withItem("item", "https://t.example/1", 9.0)

	result, err := runner.Harvest(context.Background(), h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Items[0].AnalyzedPayload != `{"summary":"strong signals"}` {
		t.Errorf("expected analyzed payload on record, got %q", result.Items[0].AnalyzedPayload)
	}
}

func TestRunner_AllSourcesFailedWritesErrorLog(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceCreator)
	h.extractErr = &TransportError{Source: "stub", Err: errors.New("connection refused")}

	if _, err := runner.Harvest(context.Background(), h, false); err == nil {
		t.Fatal("expected error when every source fails")
	}

	var status string
	var count int
	err := db.QueryRow(`SELECT status, record_count FROM harvest_logs WHERE harvester_name = ?`, h.Name()).Scan(&status, &count)
	if err != nil {
		t.Fatalf("expected an audit log entry: %v", err)
	}
	if status != string(models.HarvestLogError) {
		t.Errorf("expected error status, got %q", status)
	}
	if count != 0 {
		t.Errorf("expected recordCount 0, got %d", count)
	}
}

func TestRunner_NonTransportErrorFailsImmediately(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceSound)
	h.extractErr = errors.New("invalid source configuration")

	if _, err := runner.Harvest(context.Background(), h, false); err == nil {
		t.Fatal("expected non-transport error to fail the harvest")
	}
	if h.extracts.Load() != 1 {
		t.Errorf("expected no further sources after a non-transport error, got %d extracts", h.extracts.Load())
	}
}

func TestRunner_PartialSourceFailureIsWarning(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)

	h := newStubHarvester(models.SourceDistribution).withItem("item", "https://d.example/1", 8.0)
	h.sources = append(h.sources, models.SourceEndpoint{Name: "second", URL: "https://d.example/feed2"})

	// Fail the first source only.
	firstCall := true
	failFirst := &flakyHarvester{stubHarvester: h, failFirst: &firstCall}

	result, err := runner.Harvest(context.Background(), failFirst, false)
	if err != nil {
		t.Fatalf("partial source failure must not fail the harvest: %v", err)
	}
	if result.Count == 0 {
		t.Error("expected records from the surviving source")
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM harvest_logs WHERE harvester_name = ?`, h.Name()).Scan(&status); err != nil {
		t.Fatalf("expected a log entry: %v", err)
	}
	if status != string(models.HarvestLogWarning) {
		t.Errorf("expected warning status, got %q", status)
	}
}

// flakyHarvester fails its first ExtractRaw call with a transport error.
type flakyHarvester struct {
	*stubHarvester
	failFirst *bool
}

func (h *flakyHarvester) ExtractRaw(ctx context.Context, source models.SourceEndpoint) ([]RawItem, error) {
	if *h.failFirst {
		*h.failFirst = false
		return nil, &TransportError{Source: source.Name, Err: errors.New("timeout")}
	}
	return h.stubHarvester.ExtractRaw(ctx, source)
}
