package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"signalforge/internal/harvest"
	"signalforge/internal/models"
)

// HarvestScheduler drives per-source-type scheduled harvests from the
// cron expressions in sources.json. Reload swaps the whole job set, which
// is how config hot reload propagates.
type HarvestScheduler struct {
	scheduler   gocron.Scheduler
	coordinator *harvest.Coordinator

	mu   sync.Mutex
	jobs map[models.SourceType]gocron.Job
}

// NewHarvestScheduler creates the scheduler with UTC semantics.
func NewHarvestScheduler(coordinator *harvest.Coordinator) (*HarvestScheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &HarvestScheduler{
		scheduler:   scheduler,
		coordinator: coordinator,
		jobs:        make(map[models.SourceType]gocron.Job),
	}, nil
}

// ParseCron parses a standard 5-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// ValidateCron checks a standard 5-field cron expression.
func ValidateCron(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// Reload replaces all scheduled harvests with the given configuration.
// Types without a schedule (or disabled) are simply not registered.
func (s *HarvestScheduler) Reload(cfg *models.SourcesConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t, job := range s.jobs {
		if err := s.scheduler.RemoveJob(job.ID()); err != nil {
			log.Printf("⚠️ [HARVEST-SCHED] Failed to remove job for %s: %v", t, err)
		}
		delete(s.jobs, t)
	}

	registered := 0
	for _, sc := range cfg.Sources {
		if !sc.Enabled || sc.Schedule == "" {
			continue
		}
		sourceType, err := models.ParseSourceType(sc.Type)
		if err != nil {
			log.Printf("⚠️ [HARVEST-SCHED] Skipping schedule: %v", err)
			continue
		}
		if err := ValidateCron(sc.Schedule); err != nil {
			log.Printf("⚠️ [HARVEST-SCHED] Invalid cron %q for %s: %v", sc.Schedule, sc.Type, err)
			continue
		}

		job, err := s.scheduler.NewJob(
			gocron.CronJob(sc.Schedule, false),
			gocron.NewTask(func() {
				s.runScheduledHarvest(sourceType)
			}),
			gocron.WithName(string(sourceType)),
		)
		if err != nil {
			log.Printf("⚠️ [HARVEST-SCHED] Failed to register %s: %v", sc.Type, err)
			continue
		}
		s.jobs[sourceType] = job
		registered++
	}

	log.Printf("✅ [HARVEST-SCHED] %d harvest schedules registered", registered)
	return nil
}

func (s *HarvestScheduler) runScheduledHarvest(t models.SourceType) {
	log.Printf("⏰ [HARVEST-SCHED] Scheduled harvest firing: %s", t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.coordinator.Harvest(ctx, t, false); err != nil {
		log.Printf("❌ [HARVEST-SCHED] Scheduled %s harvest failed: %v", t, err)
	}
}

// Start begins firing schedules.
func (s *HarvestScheduler) Start() {
	s.scheduler.Start()
	log.Println("✅ [HARVEST-SCHED] Harvest scheduler started")
}

// Stop shuts the scheduler down, waiting for in-flight jobs.
func (s *HarvestScheduler) Stop() error {
	log.Println("⏹️ [HARVEST-SCHED] Stopping harvest scheduler...")
	return s.scheduler.Shutdown()
}

// NextRun reports the earliest upcoming scheduled harvest, if any.
func (s *HarvestScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest *time.Time
	for _, job := range s.jobs {
		next, err := job.NextRun()
		if err != nil {
			continue
		}
		if earliest == nil || next.Before(*earliest) {
			earliest = &next
		}
	}
	return earliest
}
