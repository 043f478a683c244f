// Package monitor maintains the append-only metrics series and computes
// system health. Pure read/aggregate logic over persisted samples, no
// external calls.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"signalforge/internal/database"
	"signalforge/internal/models"
)

// Monitor computes health and trend over the agent metrics series.
type Monitor struct {
	db             *database.DB
	attentionFloor float64 // agents below this quality need attention
	trendWindow    int     // system samples in the rolling comparison window
	nextRun        func() *time.Time
}

// baselineQuality seeds an agent's series before its first sample.
const baselineQuality = 5.0

// New creates a monitor. nextRun reports the next scheduled training run
// and may be nil when scheduling is disabled.
func New(db *database.DB, attentionFloor float64, trendWindow int, nextRun func() *time.Time) *Monitor {
	if trendWindow < 1 {
		trendWindow = 3
	}
	return &Monitor{
		db:             db,
		attentionFloor: attentionFloor,
		trendWindow:    trendWindow,
		nextRun:        nextRun,
	}
}

// RecordAgentResult appends one sample for an agent after a training run.
// Quality moves from the agent's latest known quality by the reported
// improvement, clamped to [0,10]. Failed agents keep their quality but the
// sample marks them untrained.
func (m *Monitor) RecordAgentResult(ctx context.Context, runID, agentID string, improvement float64, trained bool) (float64, error) {
	quality := baselineQuality
	if recent, err := m.db.RecentMetrics(ctx, agentID, 1); err == nil && len(recent) > 0 {
		quality = recent[0].QualityScore
	}
	if trained {
		quality = clamp10(quality + improvement)
	}

	sample := models.AgentMetricSample{
		AgentID:            agentID,
		Timestamp:          time.Now(),
		QualityScore:       quality,
		QualityImprovement: improvement,
		TrainingRunID:      runID,
		Trained:            trained,
	}
	if err := m.db.InsertMetric(ctx, sample); err != nil {
		return 0, err
	}
	return quality, nil
}

// RecordSystemQuality appends the run-level system sample.
func (m *Monitor) RecordSystemQuality(ctx context.Context, runID string, quality, delta float64) error {
	return m.db.InsertMetric(ctx, models.AgentMetricSample{
		AgentID:            database.SystemAgentID,
		Timestamp:          time.Now(),
		QualityScore:       quality,
		QualityImprovement: delta,
		TrainingRunID:      runID,
		Trained:            true,
	})
}

// SystemQuality computes system-wide quality as the mean of each agent's
// latest sample. No samples at all yields the baseline.
func (m *Monitor) SystemQuality(ctx context.Context) (float64, error) {
	latest, err := m.db.LatestMetricPerAgent(ctx)
	if err != nil {
		return 0, err
	}
	if len(latest) == 0 {
		return baselineQuality, nil
	}
	var sum float64
	for _, s := range latest {
		sum += s.QualityScore
	}
	return sum / float64(len(latest)), nil
}

// Summary computes the monitor's aggregate health view.
func (m *Monitor) Summary(ctx context.Context) (*models.HealthSummary, error) {
	quality, err := m.SystemQuality(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.HealthSummary{
		SystemQuality: quality,
		Trend:         models.TrendStable,
	}
	if m.nextRun != nil {
		summary.NextScheduledRun = m.nextRun()
	}

	// Rolling trend: current system quality against the mean of the prior
	// window of system samples. ±2% is treated as stable noise.
	systemSamples, err := m.db.RecentMetrics(ctx, database.SystemAgentID, m.trendWindow+1)
	if err != nil {
		return nil, err
	}
	if len(systemSamples) > 0 {
		t := systemSamples[0].Timestamp
		summary.LastRunAt = &t
		summary.ImprovementPercent = improvementPercent(systemSamples)
	}
	if len(systemSamples) > 1 {
		var prior float64
		for _, s := range systemSamples[1:] {
			prior += s.QualityScore
		}
		prior /= float64(len(systemSamples) - 1)
		switch {
		case quality > prior*1.02:
			summary.Trend = models.TrendUp
		case quality < prior*0.98:
			summary.Trend = models.TrendDown
		}
	}

	// An agent needs care when its quality sits below the floor or when
	// any run in the recent window failed to train it, even if a later
	// run recovered.
	latest, err := m.db.LatestMetricPerAgent(ctx)
	if err != nil {
		return nil, err
	}
	for id, s := range latest {
		if s.QualityScore < m.attentionFloor {
			summary.AgentsNeedingCare = append(summary.AgentsNeedingCare, id)
			continue
		}
		recent, err := m.db.RecentMetrics(ctx, id, m.trendWindow)
		if err != nil {
			return nil, err
		}
		for _, r := range recent {
			if !r.Trained {
				summary.AgentsNeedingCare = append(summary.AgentsNeedingCare, id)
				break
			}
		}
	}
	sort.Strings(summary.AgentsNeedingCare)

	return summary, nil
}

// improvementPercent is the percent change between the two most recent
// system samples.
func improvementPercent(samples []models.AgentMetricSample) float64 {
	if len(samples) < 2 || samples[1].QualityScore == 0 {
		return 0
	}
	return (samples[0].QualityScore - samples[1].QualityScore) / samples[1].QualityScore * 100
}

// RenderReport produces the human-readable run report.
func (m *Monitor) RenderReport(run *models.TrainingRun, summary *models.HealthSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Holistic training run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(&sb, "Duration: %dms\n", run.TotalTimeMs)
	fmt.Fprintf(&sb, "System quality: %.2f → %.2f (Δ %+.2f, trend %s)\n",
		run.SystemQualityBefore, run.SystemQualityAfter, run.QualityDelta(), summary.Trend)
	fmt.Fprintf(&sb, "Agents trained: %d", len(run.AgentsTrained))
	if len(run.AgentsTrained) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(run.AgentsTrained, ", "))
	}
	sb.WriteString("\n")
	if len(run.AgentsFailed) > 0 {
		fmt.Fprintf(&sb, "Agents failed: %d\n", len(run.AgentsFailed))
		for _, f := range run.AgentsFailed {
			fmt.Fprintf(&sb, "  - %s: %s\n", f.AgentID, f.Reason)
		}
	}
	if len(summary.AgentsNeedingCare) > 0 {
		fmt.Fprintf(&sb, "Needing attention: %s\n", strings.Join(summary.AgentsNeedingCare, ", "))
	}
	for _, p := range run.PhaseResults {
		fmt.Fprintf(&sb, "Phase %-14s %-9s %6dms\n", p.Phase, p.Status, p.DurationMs)
	}
	return sb.String()
}

func clamp10(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
