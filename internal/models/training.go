package models

import "time"

// TrainingPhase names one phase of a holistic training run.
type TrainingPhase string

const (
	PhaseHarvesting    TrainingPhase = "harvesting"
	PhaseValidation    TrainingPhase = "validation"
	PhaseTraining      TrainingPhase = "training"
	PhaseProductionRun TrainingPhase = "production_run"
	PhaseMonitoring    TrainingPhase = "monitoring"
	PhaseCleanup       TrainingPhase = "cleanup"
)

// RunStatus is the overall outcome of a training run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// PhaseResult records one phase's outcome within a run.
type PhaseResult struct {
	Phase      TrainingPhase `json:"phase"`
	Status     string        `json:"status"` // completed, failed, skipped
	DurationMs int64         `json:"durationMs"`
	Detail     string        `json:"detail,omitempty"`
}

// AgentFailure names an agent that failed to train and why.
type AgentFailure struct {
	AgentID string `json:"agentId"`
	Reason  string `json:"reason"`
}

// TrainingRun is the full record of one holistic training run.
type TrainingRun struct {
	ID                  string         `json:"id"`
	Status              RunStatus      `json:"status"`
	StartedAt           time.Time      `json:"startedAt"`
	CompletedAt         time.Time      `json:"completedAt"`
	TotalTimeMs         int64          `json:"totalTimeMs"`
	PhaseResults        []PhaseResult  `json:"phaseResults"`
	AgentsTrained       []string       `json:"agentsTrained"`
	AgentsFailed        []AgentFailure `json:"agentsFailed"`
	SystemQualityBefore float64        `json:"systemQualityBefore"`
	SystemQualityAfter  float64        `json:"systemQualityAfter"`
}

// QualityDelta is the system quality change across the run.
func (r *TrainingRun) QualityDelta() float64 {
	return r.SystemQualityAfter - r.SystemQualityBefore
}

// TrainRequest is the POST /train body.
type TrainRequest struct {
	ForceRefresh  bool `json:"forceRefresh"`
	ProductionRun bool `json:"productionRun"`
}

// TrainOutcome is what an agent reports after one training call.
type TrainOutcome struct {
	QualityImprovement float64 `json:"qualityImprovement"`
	RecordsConsumed    int     `json:"recordsConsumed"`
	Notes              string  `json:"notes,omitempty"`
}

// AgentMetricSample is one point in an agent's append-only metrics series.
type AgentMetricSample struct {
	AgentID            string    `json:"agentId"`
	Timestamp          time.Time `json:"timestamp"`
	QualityScore       float64   `json:"qualityScore"`
	QualityImprovement float64   `json:"qualityImprovement"`
	TrainingRunID      string    `json:"trainingRunId,omitempty"`
	Trained            bool      `json:"trained"`
}

// TrendDirection summarizes system quality movement.
type TrendDirection string

const (
	TrendUp     TrendDirection = "improving"
	TrendStable TrendDirection = "stable"
	TrendDown   TrendDirection = "declining"
)

// HealthSummary is the monitor's aggregate view of the agent fleet.
type HealthSummary struct {
	SystemQuality      float64        `json:"systemQuality"`
	Trend              TrendDirection `json:"trend"`
	ImprovementPercent float64        `json:"improvementPercent"`
	AgentsNeedingCare  []string       `json:"agentsNeedingCare,omitempty"`
	LastRunAt          *time.Time     `json:"lastRunAt,omitempty"`
	NextScheduledRun   *time.Time     `json:"nextScheduledRun,omitempty"`
}
