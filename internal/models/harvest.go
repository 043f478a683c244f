package models

import (
	"fmt"
	"time"
)

// SourceType identifies one harvestable data category. Each type is owned
// by exactly one harvester.
type SourceType string

const (
	SourceTrend        SourceType = "trend"
	SourceAudio        SourceType = "audio"
	SourceScreenplay   SourceType = "screenplay"
	SourceCreator      SourceType = "creator"
	SourceDistribution SourceType = "distribution"
	SourceSound        SourceType = "sound"
)

// AllSourceTypes lists every known source type.
var AllSourceTypes = []SourceType{
	SourceTrend,
	SourceAudio,
	SourceScreenplay,
	SourceCreator,
	SourceDistribution,
	SourceSound,
}

// ParseSourceType validates a raw source type string.
func ParseSourceType(raw string) (SourceType, error) {
	for _, t := range AllSourceTypes {
		if raw == string(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown source type %q", raw)
}

// HarvestedRecord is one persisted harvest item.
type HarvestedRecord struct {
	ID              int64      `json:"id"`
	SourceType      SourceType `json:"sourceType"`
	HarvesterName   string     `json:"harvesterName"`
	RawPayload      string     `json:"rawPayload"`
	AnalyzedPayload string     `json:"analyzedPayload,omitempty"`
	QualityScore    float64    `json:"qualityScore"`
	SourceURL       string     `json:"sourceUrl,omitempty"`
	HarvestedAt     time.Time  `json:"harvestedAt"`
	ExpiresAt       time.Time  `json:"expiresAt"`
}

// HarvestLogStatus is the outcome of one harvest invocation.
type HarvestLogStatus string

const (
	HarvestLogSuccess HarvestLogStatus = "success"
	HarvestLogWarning HarvestLogStatus = "warning" // some sources failed
	HarvestLogError   HarvestLogStatus = "error"
)

// HarvestLogEntry is the audit record of one harvest invocation.
type HarvestLogEntry struct {
	ID              int64            `json:"id"`
	HarvesterName   string           `json:"harvesterName"`
	Status          HarvestLogStatus `json:"status"`
	RecordCount     int              `json:"recordCount"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	ErrorMessage    string           `json:"errorMessage,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// HarvestResult is what one harvest invocation returns to its caller.
type HarvestResult struct {
	SourceType SourceType        `json:"sourceType"`
	Count      int               `json:"count"`
	Items      []HarvestedRecord `json:"items,omitempty"`
	FromCache  bool              `json:"fromCache"`
}

// HarvesterStats aggregates harvest_logs per harvester.
type HarvesterStats struct {
	HarvesterName  string     `json:"harvesterName"`
	TotalRuns      int64      `json:"totalRuns"`
	SuccessfulRuns int64      `json:"successfulRuns"`
	SuccessRate    float64    `json:"successRate"`
	TotalRecords   int64      `json:"totalRecords"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
}

// HarvestRequest is the POST /harvest body.
type HarvestRequest struct {
	Type  string `json:"type"` // source type or "all"
	Force bool   `json:"force"`
}

// CleanupRequest is the POST /cleanup body.
type CleanupRequest struct {
	Days int `json:"days"`
}

// CleanupSummary reports what one retention pass deleted.
type CleanupSummary struct {
	RecordsDeleted int64 `json:"recordsDeleted"`
	LogsDeleted    int64 `json:"logsDeleted"`
}
