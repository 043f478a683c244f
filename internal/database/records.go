package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"signalforge/internal/models"
)

// InsertHarvest persists all records from one harvest() call plus its log
// entry in a single transaction. Either everything lands or nothing does.
// Duplicate (source_type, source_url, harvested_at) rows are coalesced via
// INSERT OR IGNORE rather than failing the batch.
func (db *DB) InsertHarvest(ctx context.Context, records []models.HarvestedRecord, entry models.HarvestLogEntry) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO harvested_records
			(source_type, harvester_name, raw_payload, analyzed_payload,
			 quality_score, source_url, harvested_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			string(r.SourceType), r.HarvesterName, r.RawPayload, r.AnalyzedPayload,
			r.QualityScore, r.SourceURL, r.HarvestedAt.UnixNano(), r.ExpiresAt.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := insertLogTx(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit harvest: %w", err)
	}
	return inserted, nil
}

// InsertLog writes a standalone HarvestLogEntry. Used on the failure path
// where no records exist to persist.
func (db *DB) InsertLog(ctx context.Context, entry models.HarvestLogEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertLogTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func insertLogTx(ctx context.Context, tx *sql.Tx, entry models.HarvestLogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO harvest_logs
			(harvester_name, status, record_count, execution_time_ms, error_message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.HarvesterName, string(entry.Status), entry.RecordCount,
		entry.ExecutionTimeMs, entry.ErrorMessage, ts.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// RecordQuery filters harvested records. Zero values disable a filter.
type RecordQuery struct {
	SourceType models.SourceType
	Limit      int
	MaxAge     time.Duration
	MinScore   float64
}

// QueryRecords returns records matching q, newest and highest quality first.
func (db *DB) QueryRecords(ctx context.Context, q RecordQuery) ([]models.HarvestedRecord, error) {
	query := `
		SELECT id, source_type, harvester_name, raw_payload, analyzed_payload,
		       quality_score, source_url, harvested_at, expires_at
		FROM harvested_records
		WHERE source_type = ?`
	args := []any{string(q.SourceType)}

	if q.MaxAge > 0 {
		query += " AND harvested_at >= ?"
		args = append(args, time.Now().Add(-q.MaxAge).UnixNano())
	}
	if q.MinScore > 0 {
		query += " AND quality_score >= ?"
		args = append(args, q.MinScore)
	}
	query += " ORDER BY quality_score DESC, harvested_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.HarvestedRecord, error) {
	var records []models.HarvestedRecord
	for rows.Next() {
		var r models.HarvestedRecord
		var sourceType string
		var harvestedAt, expiresAt int64
		if err := rows.Scan(&r.ID, &sourceType, &r.HarvesterName, &r.RawPayload,
			&r.AnalyzedPayload, &r.QualityScore, &r.SourceURL, &harvestedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.SourceType = models.SourceType(sourceType)
		r.HarvestedAt = time.Unix(0, harvestedAt)
		r.ExpiresAt = time.Unix(0, expiresAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Cleanup deletes records past their expiry or older than the retention
// window, plus harvest logs older than the same window. Idempotent.
func (db *DB) Cleanup(ctx context.Context, days int) (models.CleanupSummary, error) {
	var summary models.CleanupSummary
	cutoff := time.Now().AddDate(0, 0, -days).UnixNano()
	now := time.Now().UnixNano()

	res, err := db.ExecContext(ctx, `
		DELETE FROM harvested_records WHERE expires_at <= ? OR harvested_at < ?
	`, now, cutoff)
	if err != nil {
		return summary, fmt.Errorf("failed to delete expired records: %w", err)
	}
	summary.RecordsDeleted, _ = res.RowsAffected()

	res, err = db.ExecContext(ctx, `DELETE FROM harvest_logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return summary, fmt.Errorf("failed to delete old logs: %w", err)
	}
	summary.LogsDeleted, _ = res.RowsAffected()

	return summary, nil
}

// HarvesterStats aggregates harvest_logs per harvester for /stats.
func (db *DB) HarvesterStats(ctx context.Context) ([]models.HarvesterStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT harvester_name,
		       COUNT(*) AS total_runs,
		       SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) AS successful_runs,
		       SUM(record_count) AS total_records,
		       MAX(timestamp) AS last_run
		FROM harvest_logs
		GROUP BY harvester_name
		ORDER BY harvester_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query harvester stats: %w", err)
	}
	defer rows.Close()

	var stats []models.HarvesterStats
	for rows.Next() {
		var s models.HarvesterStats
		var lastRun int64
		if err := rows.Scan(&s.HarvesterName, &s.TotalRuns, &s.SuccessfulRuns, &s.TotalRecords, &lastRun); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		if s.TotalRuns > 0 {
			s.SuccessRate = float64(s.SuccessfulRuns) / float64(s.TotalRuns)
		}
		if lastRun > 0 {
			t := time.Unix(0, lastRun)
			s.LastRunAt = &t
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
