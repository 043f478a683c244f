package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"signalforge/internal/models"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *Runner) {
	t.Helper()
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)
	return NewCoordinator(db, runner, 5*time.Second), runner
}

func TestCoordinator_UnknownSourceType(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.Harvest(context.Background(), models.SourceTrend, false)
	if !errors.Is(err, ErrUnknownSourceType) {
		t.Fatalf("expected ErrUnknownSourceType, got %v", err)
	}
}

func TestCoordinator_HarvestAllIsolatesFailures(t *testing.T) {
	c, _ := newTestCoordinator(t)

	healthy := newStubHarvester(models.SourceTrend).withItem("item", "https://t.example/1", 8.5)
	broken := newStubHarvester(models.SourceAudio)
	broken.extractErr = errors.New("credentials rotated")

	c.Register(healthy)
	c.Register(broken)

	results := c.HarvestAll(context.Background(), false)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byType := make(map[models.SourceType]TypeResult)
	for _, r := range results {
		byType[r.SourceType] = r
	}
	if byType[models.SourceTrend].Err != nil {
		t.Errorf("healthy harvester must not be affected: %v", byType[models.SourceTrend].Err)
	}
	if byType[models.SourceTrend].Result == nil || byType[models.SourceTrend].Result.Count != 1 {
		t.Errorf("expected 1 record from healthy harvester, got %+v", byType[models.SourceTrend].Result)
	}
	if byType[models.SourceAudio].Err == nil {
		t.Error("expected broken harvester to report its error")
	}
}

// blockingHarvester never returns from ExtractRaw until its context ends.
type blockingHarvester struct {
	*stubHarvester
}

func (h *blockingHarvester) ExtractRaw(ctx context.Context, source models.SourceEndpoint) ([]RawItem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCoordinator_HangingHarvesterTimesOutWithErrorLog(t *testing.T) {
	db := newTestDB(t)
	gate := NewFreshnessGate(db, 24*time.Hour, 3)
	runner := NewRunner(db, gate, nil, 7.0, 24*time.Hour)
	c := NewCoordinator(db, runner, 200*time.Millisecond)

	h := &blockingHarvester{newStubHarvester(models.SourceScreenplay)}
	c.Register(h)

	start := time.Now()
	_, err := c.Harvest(context.Background(), models.SourceScreenplay, false)
	if err == nil {
		t.Fatal("expected a hanging harvester to fail under the timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("harvest must return promptly after the timeout, took %v", elapsed)
	}

	var status string
	var count int
	if err := db.QueryRow(`SELECT status, record_count FROM harvest_logs WHERE harvester_name = ?`, h.Name()).Scan(&status, &count); err != nil {
		t.Fatalf("expected an audit log entry: %v", err)
	}
	if status != string(models.HarvestLogError) {
		t.Errorf("expected error status, got %q", status)
	}
	if count != 0 {
		t.Errorf("expected recordCount 0, got %d", count)
	}
}

func TestCoordinator_RegisterReplacesAndUnregisters(t *testing.T) {
	c, _ := newTestCoordinator(t)

	first := newStubHarvester(models.SourceSound)
	second := newStubHarvester(models.SourceSound).withItem("item", "https://s.example/1", 9.0)

	c.Register(first)
	c.Register(second)
	if got := c.EnabledTypes(); len(got) != 1 {
		t.Fatalf("re-registering the same type must replace, got %v", got)
	}

	result, err := c.Harvest(context.Background(), models.SourceSound, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 1 {
		t.Errorf("expected the replacement harvester to serve, got %d records", result.Count)
	}

	c.Unregister(models.SourceSound)
	if got := c.EnabledTypes(); len(got) != 0 {
		t.Errorf("expected no types after unregister, got %v", got)
	}
}
