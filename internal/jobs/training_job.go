package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"signalforge/internal/models"
	"signalforge/internal/training"
)

// TrainingJob triggers holistic training runs on a cron schedule.
type TrainingJob struct {
	trainer  *training.Trainer
	schedule cron.Schedule
}

// NewTrainingJob creates the scheduled holistic training job.
func NewTrainingJob(trainer *training.Trainer, schedule cron.Schedule) *TrainingJob {
	return &TrainingJob{trainer: trainer, schedule: schedule}
}

// Run executes one holistic training run. An already-running manual run
// simply skips this cycle.
func (j *TrainingJob) Run(ctx context.Context) error {
	run, err := j.trainer.Run(ctx, models.TrainRequest{})
	if err != nil {
		if errors.Is(err, training.ErrRunInProgress) {
			log.Println("⚠️ [TRAINING-JOB] Run already in progress, skipping this cycle")
			return nil
		}
		return err
	}
	log.Printf("✅ [TRAINING-JOB] Scheduled run %s finished with status %s", run.ID, run.Status)
	return nil
}

// GetNextRunTime returns the next scheduled training run.
func (j *TrainingJob) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now())
}
