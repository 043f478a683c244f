package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"signalforge/internal/database"
)

// CleanupJob deletes expired records and stale logs on a cron schedule,
// then compacts the store. Compaction runs here, never on the request path.
type CleanupJob struct {
	db            *database.DB
	retentionDays int
	schedule      cron.Schedule
}

// NewCleanupJob creates the recurring retention cleanup job.
func NewCleanupJob(db *database.DB, retentionDays int, schedule cron.Schedule) *CleanupJob {
	return &CleanupJob{
		db:            db,
		retentionDays: retentionDays,
		schedule:      schedule,
	}
}

// Run executes one cleanup pass.
func (j *CleanupJob) Run(ctx context.Context) error {
	summary, err := j.db.Cleanup(ctx, j.retentionDays)
	if err != nil {
		return err
	}
	log.Printf("🧹 [CLEANUP] Retention pass (%dd): %d records, %d logs deleted",
		j.retentionDays, summary.RecordsDeleted, summary.LogsDeleted)

	if summary.RecordsDeleted+summary.LogsDeleted > 0 {
		if err := j.db.Vacuum(); err != nil {
			log.Printf("⚠️ [CLEANUP] Vacuum failed: %v", err)
		}
	}
	return nil
}

// GetNextRunTime returns the next scheduled cleanup.
func (j *CleanupJob) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now())
}
