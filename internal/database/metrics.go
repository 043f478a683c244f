package database

import (
	"context"
	"fmt"
	"time"

	"signalforge/internal/models"
)

// SystemAgentID is the pseudo-agent under which run-level system quality
// samples are recorded in the metrics series.
const SystemAgentID = "system"

// InsertMetric appends one sample to the metrics series.
func (db *DB) InsertMetric(ctx context.Context, s models.AgentMetricSample) error {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	trained := 0
	if s.Trained {
		trained = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO agent_metrics
			(agent_id, timestamp, quality_score, quality_improvement, training_run_id, trained)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.AgentID, ts.UnixNano(), s.QualityScore, s.QualityImprovement, s.TrainingRunID, trained)
	if err != nil {
		return fmt.Errorf("failed to insert metric sample: %w", err)
	}
	return nil
}

// RecentMetrics returns the newest n samples for one agent, newest first.
func (db *DB) RecentMetrics(ctx context.Context, agentID string, n int) ([]models.AgentMetricSample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT agent_id, timestamp, quality_score, quality_improvement, training_run_id, trained
		FROM agent_metrics
		WHERE agent_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, agentID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var samples []models.AgentMetricSample
	for rows.Next() {
		var s models.AgentMetricSample
		var ts int64
		var trained int
		if err := rows.Scan(&s.AgentID, &ts, &s.QualityScore, &s.QualityImprovement, &s.TrainingRunID, &trained); err != nil {
			return nil, fmt.Errorf("failed to scan metric sample: %w", err)
		}
		s.Timestamp = time.Unix(0, ts)
		s.Trained = trained != 0
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// LatestMetricPerAgent returns the most recent sample for every real agent
// (the system pseudo-agent excluded).
func (db *DB) LatestMetricPerAgent(ctx context.Context) (map[string]models.AgentMetricSample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.agent_id, m.timestamp, m.quality_score, m.quality_improvement, m.training_run_id, m.trained
		FROM agent_metrics m
		JOIN (
			SELECT agent_id, MAX(timestamp) AS max_ts
			FROM agent_metrics
			WHERE agent_id != ?
			GROUP BY agent_id
		) latest ON latest.agent_id = m.agent_id AND latest.max_ts = m.timestamp
	`, SystemAgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.AgentMetricSample)
	for rows.Next() {
		var s models.AgentMetricSample
		var ts int64
		var trained int
		if err := rows.Scan(&s.AgentID, &ts, &s.QualityScore, &s.QualityImprovement, &s.TrainingRunID, &trained); err != nil {
			return nil, fmt.Errorf("failed to scan metric sample: %w", err)
		}
		s.Timestamp = time.Unix(0, ts)
		s.Trained = trained != 0
		out[s.AgentID] = s
	}
	return out, rows.Err()
}
