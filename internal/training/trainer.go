package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalforge/internal/database"
	"signalforge/internal/harvest"
	"signalforge/internal/logging"
	"signalforge/internal/models"
	"signalforge/internal/monitor"
)

// Harvesting is the slice of the harvest coordinator the trainer needs.
type Harvesting interface {
	HarvestAll(ctx context.Context, force bool) []harvest.TypeResult
}

// ProductionPipeline runs the full content pipeline as an end-to-end smoke
// test of freshly trained agents.
type ProductionPipeline interface {
	Run(ctx context.Context) error
}

// Options bounds one holistic training run. All values are policy, not
// invariants, and come from configuration.
type Options struct {
	QualityThreshold  float64
	AgentTimeout      time.Duration
	PipelineTimeout   time.Duration
	MinRecordsPerType int
	RetentionDays     int
	ProductionEnabled bool
	Budgets           map[models.SourceType]int
}

// DefaultBudgets caps validated record counts per source type.
var DefaultBudgets = map[models.SourceType]int{
	models.SourceTrend:        50,
	models.SourceAudio:        100,
	models.SourceScreenplay:   40,
	models.SourceCreator:      60,
	models.SourceDistribution: 50,
	models.SourceSound:        80,
}

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a training run is already in progress")

// Trainer orchestrates the six-phase holistic training pipeline.
type Trainer struct {
	db       *database.DB
	harvests Harvesting
	registry *Registry
	mon      *monitor.Monitor
	pipeline ProductionPipeline
	opts     Options

	mu      sync.Mutex
	state   RunState
	running bool
	lastRun *models.TrainingRun
}

// NewTrainer wires the orchestrator. pipeline may be nil when production
// runs are disabled.
func NewTrainer(db *database.DB, harvests Harvesting, registry *Registry, mon *monitor.Monitor, pipeline ProductionPipeline, opts Options) *Trainer {
	if opts.Budgets == nil {
		opts.Budgets = DefaultBudgets
	}
	return &Trainer{
		db:       db,
		harvests: harvests,
		registry: registry,
		mon:      mon,
		pipeline: pipeline,
		opts:     opts,
		state:    StateIdle,
	}
}

// State returns the trainer's current pipeline state.
func (t *Trainer) State() RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastRun returns the most recently completed run, if any.
func (t *Trainer) LastRun() *models.TrainingRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *Trainer) setState(desired RunState) {
	t.mu.Lock()
	t.state = Transition(t.state, desired)
	t.mu.Unlock()
}

// Run executes one holistic training run. Phases only move forward; a
// phase failure downgrades the run but never rolls back earlier phases.
func (t *Trainer) Run(ctx context.Context, req models.TrainRequest) (*models.TrainingRun, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil, ErrRunInProgress
	}
	t.running = true
	t.mu.Unlock()

	run := &models.TrainingRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	log.Printf("🚀 [TRAINER] Starting holistic training run %s", run.ID)
	rlog := logging.WithRun(run.ID)
	rlog.Debug("training run accepted", "forceRefresh", req.ForceRefresh, "productionRun", req.ProductionRun)

	defer func() {
		t.mu.Lock()
		t.running = false
		t.state = StateIdle
		t.lastRun = run
		t.mu.Unlock()
	}()

	before, err := t.mon.SystemQuality(ctx)
	if err != nil {
		before = 0
	}
	run.SystemQualityBefore = before

	// Phases 1-3 share the total pipeline budget.
	pctx, cancel := context.WithTimeout(ctx, t.opts.PipelineTimeout)
	defer cancel()

	// Phase 1: harvest every enabled source type.
	t.setState(StateHarvesting)
	results, phase := t.phaseHarvest(pctx, req.ForceRefresh)
	run.PhaseResults = append(run.PhaseResults, phase)
	if pctx.Err() != nil {
		return t.finalize(ctx, run, models.RunStatusFailed, "pipeline timeout during harvesting")
	}

	// Phase 2: validate, deduplicate, rank, truncate.
	t.setState(StateValidating)
	slices, phase := t.phaseValidate(results)
	run.PhaseResults = append(run.PhaseResults, phase)
	if pctx.Err() != nil {
		return t.finalize(ctx, run, models.RunStatusFailed, "pipeline timeout during validation")
	}

	// Phase 3: train agents sequentially in dependency order.
	t.setState(StateTraining)
	outcomes, phase := t.phaseTrain(pctx, run, slices)
	run.PhaseResults = append(run.PhaseResults, phase)

	// Phase 4: optional production run, per config or per request.
	if (t.opts.ProductionEnabled || req.ProductionRun) && t.pipeline != nil && len(run.AgentsTrained) > 0 {
		t.setState(StateProductionRun)
		run.PhaseResults = append(run.PhaseResults, t.phaseProduction(ctx))
	}

	// Phase 5: monitoring.
	t.setState(StateMonitoring)
	run.PhaseResults = append(run.PhaseResults, t.phaseMonitor(ctx, run, outcomes))

	// Phase 6: cleanup. Its failure never affects the run outcome.
	t.setState(StateCleanup)
	run.PhaseResults = append(run.PhaseResults, t.phaseCleanup(ctx))

	status := models.RunStatusFailed
	switch {
	case len(run.AgentsTrained) > 0 && len(run.AgentsFailed) == 0:
		status = models.RunStatusSuccess
	case len(run.AgentsTrained) > 0:
		status = models.RunStatusPartial
	}
	return t.finalize(ctx, run, status, "")
}

// finalize stamps the run, persists the system sample and logs the report.
func (t *Trainer) finalize(ctx context.Context, run *models.TrainingRun, status models.RunStatus, detail string) (*models.TrainingRun, error) {
	run.Status = status
	run.CompletedAt = time.Now()
	run.TotalTimeMs = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	if detail != "" {
		run.PhaseResults = append(run.PhaseResults, models.PhaseResult{
			Phase:  models.PhaseCleanup,
			Status: "skipped",
			Detail: detail,
		})
	}

	// The run record must land even when the caller's context is gone
	// (cancellation or pipeline timeout).
	finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	after, err := t.mon.SystemQuality(finalCtx)
	if err == nil {
		run.SystemQualityAfter = after
	} else {
		run.SystemQualityAfter = run.SystemQualityBefore
	}
	if err := t.mon.RecordSystemQuality(finalCtx, run.ID, run.SystemQualityAfter, run.QualityDelta()); err != nil {
		log.Printf("⚠️ [TRAINER] Failed to persist system quality sample: %v", err)
	}

	log.Printf("🏁 [TRAINER] Run %s finished: status=%s trained=%d failed=%d Δquality=%+.2f in %dms",
		run.ID, run.Status, len(run.AgentsTrained), len(run.AgentsFailed), run.QualityDelta(), run.TotalTimeMs)

	if run.Status == models.RunStatusFailed && detail != "" {
		return run, fmt.Errorf("training run %s failed: %s", run.ID, detail)
	}
	return run, nil
}

func (t *Trainer) phaseHarvest(ctx context.Context, force bool) ([]harvest.TypeResult, models.PhaseResult) {
	start := time.Now()
	results := t.harvests.HarvestAll(ctx, force)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	status := "completed"
	detail := fmt.Sprintf("%d/%d source types harvested", len(results)-failures, len(results))
	if failures == len(results) && len(results) > 0 {
		status = "failed"
	}
	log.Printf("🌾 [TRAINER] Phase 1 %s: %s", status, detail)

	return results, models.PhaseResult{
		Phase:      models.PhaseHarvesting,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detail,
	}
}

// phaseValidate applies the quality threshold, deduplicates by source URL,
// ranks descending by score and truncates to the per-type budget. A source
// type ending up empty is not fatal; its agent trains on an empty slice.
func (t *Trainer) phaseValidate(results []harvest.TypeResult) (map[models.SourceType][]models.HarvestedRecord, models.PhaseResult) {
	start := time.Now()
	slices := make(map[models.SourceType][]models.HarvestedRecord)

	total := 0
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			continue
		}
		seen := make(map[string]bool)
		var kept []models.HarvestedRecord
		for _, rec := range r.Result.Items {
			if rec.QualityScore < t.opts.QualityThreshold {
				continue
			}
			if rec.SourceURL != "" && seen[rec.SourceURL] {
				continue
			}
			seen[rec.SourceURL] = true
			kept = append(kept, rec)
		}
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].QualityScore > kept[j].QualityScore
		})
		if budget := t.opts.Budgets[r.SourceType]; budget > 0 && len(kept) > budget {
			kept = kept[:budget]
		}
		slices[r.SourceType] = kept
		total += len(kept)
	}

	detail := fmt.Sprintf("%d records across %d types after filtering", total, len(slices))
	log.Printf("🔎 [TRAINER] Phase 2 completed: %s", detail)

	return slices, models.PhaseResult{
		Phase:      models.PhaseValidation,
		Status:     "completed",
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detail,
	}
}

// phaseTrain trains each agent sequentially under a per-agent timeout.
// One agent's failure never aborts the run.
func (t *Trainer) phaseTrain(ctx context.Context, run *models.TrainingRun, slices map[models.SourceType][]models.HarvestedRecord) (map[string]models.TrainOutcome, models.PhaseResult) {
	start := time.Now()
	outcomes := make(map[string]models.TrainOutcome)

	for _, agent := range t.registry.Ordered() {
		if ctx.Err() != nil {
			run.AgentsFailed = append(run.AgentsFailed, models.AgentFailure{
				AgentID: agent.ID(),
				Reason:  "pipeline timeout before training started",
			})
			continue
		}

		slice := slices[agent.SourceType()]
		if len(slice) < t.opts.MinRecordsPerType {
			log.Printf("⚠️ [TRAINER] Agent %s: only %d records for %s (min %d), training on what exists",
				agent.ID(), len(slice), agent.SourceType(), t.opts.MinRecordsPerType)
		}

		actx, cancel := context.WithTimeout(ctx, t.opts.AgentTimeout)
		outcome, err := agent.Train(actx, slice)
		cancel()

		if err != nil {
			reason := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				reason = fmt.Sprintf("timeout after %s", t.opts.AgentTimeout)
			}
			log.Printf("❌ [TRAINER] Agent %s failed: %s", agent.ID(), reason)
			run.AgentsFailed = append(run.AgentsFailed, models.AgentFailure{AgentID: agent.ID(), Reason: reason})
			continue
		}

		log.Printf("🎓 [TRAINER] Agent %s trained on %d records (improvement %+.2f)",
			agent.ID(), len(slice), outcome.QualityImprovement)
		run.AgentsTrained = append(run.AgentsTrained, agent.ID())
		outcomes[agent.ID()] = outcome
	}

	status := "completed"
	if len(run.AgentsTrained) == 0 {
		status = "failed"
	}
	return outcomes, models.PhaseResult{
		Phase:      models.PhaseTraining,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     fmt.Sprintf("%d trained, %d failed", len(run.AgentsTrained), len(run.AgentsFailed)),
	}
}

func (t *Trainer) phaseProduction(ctx context.Context) models.PhaseResult {
	start := time.Now()
	result := models.PhaseResult{Phase: models.PhaseProductionRun, Status: "completed"}

	if err := t.pipeline.Run(ctx); err != nil {
		log.Printf("⚠️ [TRAINER] Production run failed: %v", err)
		result.Status = "failed"
		result.Detail = err.Error()
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (t *Trainer) phaseMonitor(ctx context.Context, run *models.TrainingRun, outcomes map[string]models.TrainOutcome) models.PhaseResult {
	start := time.Now()
	result := models.PhaseResult{Phase: models.PhaseMonitoring, Status: "completed"}

	for _, id := range run.AgentsTrained {
		if _, err := t.mon.RecordAgentResult(ctx, run.ID, id, outcomes[id].QualityImprovement, true); err != nil {
			log.Printf("⚠️ [TRAINER] Failed to record sample for %s: %v", id, err)
			result.Status = "failed"
			result.Detail = err.Error()
		}
	}
	for _, f := range run.AgentsFailed {
		if _, err := t.mon.RecordAgentResult(ctx, run.ID, f.AgentID, 0, false); err != nil {
			log.Printf("⚠️ [TRAINER] Failed to record sample for %s: %v", f.AgentID, err)
		}
	}

	if summary, err := t.mon.Summary(ctx); err == nil {
		run.SystemQualityAfter = summary.SystemQuality
		log.Printf("📊 [TRAINER] Report:\n%s", t.mon.RenderReport(run, summary))
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (t *Trainer) phaseCleanup(ctx context.Context) models.PhaseResult {
	start := time.Now()
	result := models.PhaseResult{Phase: models.PhaseCleanup, Status: "completed"}

	summary, err := t.db.Cleanup(ctx, t.opts.RetentionDays)
	if err != nil {
		log.Printf("⚠️ [TRAINER] Cleanup failed (run outcome unaffected): %v", err)
		result.Status = "failed"
		result.Detail = err.Error()
	} else {
		result.Detail = fmt.Sprintf("%d records, %d logs deleted", summary.RecordsDeleted, summary.LogsDeleted)
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}
