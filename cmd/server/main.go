package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"signalforge/internal/analysis"
	"signalforge/internal/config"
	"signalforge/internal/database"
	"signalforge/internal/handlers"
	"signalforge/internal/harvest"
	"signalforge/internal/jobs"
	"signalforge/internal/logging"
	"signalforge/internal/models"
	"signalforge/internal/monitor"
	"signalforge/internal/preflight"
	"signalforge/internal/training"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logging.Init()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database schema: %v", err)
	}
	log.Println("✅ Database initialized:", cfg.DatabasePath)

	checker := preflight.NewChecker(db, cfg.SourcesFile)
	if preflight.HasFailures(checker.RunAll()) {
		log.Fatal("❌ Pre-flight checks failed, aborting startup")
	}

	// Analysis is optional: without a key, harvests persist unanalyzed.
	var analyzer harvest.Analyzer
	if cfg.AnalysisAPIKey != "" {
		analyzer = analysis.New(cfg.AnalysisBaseURL, cfg.AnalysisAPIKey, analysis.ModelConfig{
			Name:        cfg.AnalysisModel,
			Temperature: cfg.AnalysisTemp,
			MaxTokens:   cfg.AnalysisMaxTokens,
		}, cfg.AnalysisRetries, cfg.AnalysisRateRPS)
		log.Printf("✅ Analysis client initialized (model %s)", cfg.AnalysisModel)
	}

	fetcher := harvest.NewFetcher(cfg.FetchRateRPS)
	gate := harvest.NewFreshnessGate(db, cfg.CacheTTL, cfg.MinFreshRecords)
	runner := harvest.NewRunner(db, gate, analyzer, cfg.QualityThreshold, cfg.CacheTTL)
	coordinator := harvest.NewCoordinator(db, runner, cfg.HarvesterTimeout)

	harvestScheduler, err := jobs.NewHarvestScheduler(coordinator)
	if err != nil {
		log.Fatalf("❌ Failed to create harvest scheduler: %v", err)
	}

	if err := syncHarvesters(cfg.SourcesFile, coordinator, runner, gate, fetcher, harvestScheduler); err != nil {
		log.Printf("⚠️ %v, registering all harvesters without sources", err)
		registerDefaultHarvesters(coordinator, fetcher)
	}

	registry, err := training.NewRegistry(cfg.AgentOrder, cfg.AgentBaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to build agent registry: %v", err)
	}

	jobScheduler := jobs.NewJobScheduler()
	mon := monitor.New(db, cfg.QualityThreshold, 3, func() *time.Time {
		if next, ok := jobScheduler.NextRunTime("holistic_training"); ok {
			return &next
		}
		return nil
	})

	pipeline := training.NewHTTPPipeline(cfg.AgentBaseURL)
	if cfg.ProductionRunEnabled {
		log.Println("✅ Production pipeline run enabled by default")
	}

	trainer := training.NewTrainer(db, coordinator, registry, mon, pipeline, training.Options{
		QualityThreshold:  cfg.QualityThreshold,
		AgentTimeout:      cfg.AgentTimeout,
		PipelineTimeout:   cfg.PipelineTimeout,
		MinRecordsPerType: cfg.MinRecordsPerType,
		RetentionDays:     cfg.CleanupAfterDays,
		ProductionEnabled: cfg.ProductionRunEnabled,
	})

	cleanupSchedule, err := jobs.ParseCron(cfg.CleanupSchedule)
	if err != nil {
		log.Fatalf("❌ Invalid CLEANUP_SCHEDULE %q: %v", cfg.CleanupSchedule, err)
	}
	trainingSchedule, err := jobs.ParseCron(cfg.TrainingSchedule)
	if err != nil {
		log.Fatalf("❌ Invalid TRAINING_SCHEDULE %q: %v", cfg.TrainingSchedule, err)
	}
	jobScheduler.Register("retention_cleanup", jobs.NewCleanupJob(db, cfg.CleanupAfterDays, cleanupSchedule))
	jobScheduler.Register("holistic_training", jobs.NewTrainingJob(trainer, trainingSchedule))
	jobScheduler.Start()
	harvestScheduler.Start()

	go startSourcesFileWatcher(cfg.SourcesFile, coordinator, runner, gate, fetcher, harvestScheduler)

	app := fiber.New(fiber.Config{
		AppName: "SignalForge v1.0",
		// Synchronous /train responses outlive the pipeline budget.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.PipelineTimeout + 10*time.Minute,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    5 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("signalforge")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	// Mutating endpoints trigger upstream fetches and training runs, so
	// they get a much tighter budget than reads.
	mutationLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	})

	healthHandler := handlers.NewHealthHandler(db)
	harvestHandler := handlers.NewHarvestHandler(coordinator)
	dataHandler := handlers.NewDataHandler(db)
	statsHandler := handlers.NewStatsHandler(coordinator)
	cleanupHandler := handlers.NewCleanupHandler(db, cfg.CleanupAfterDays)
	trainHandler := handlers.NewTrainHandler(trainer, mon)

	app.Get("/health", healthHandler.Handle)
	app.Post("/harvest", mutationLimiter, harvestHandler.Handle)
	app.Get("/data/:sourceType", dataHandler.Handle)
	app.Get("/stats", statsHandler.Handle)
	app.Post("/cleanup", mutationLimiter, cleanupHandler.Handle)
	app.Post("/train", mutationLimiter, trainHandler.Handle)
	app.Get("/training/status", trainHandler.HandleStatus)

	log.Printf("🚀 SignalForge starting on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: retention cleanup (%s), holistic training (%s)",
		cfg.CleanupSchedule, cfg.TrainingSchedule)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()
		if err := harvestScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping harvest scheduler: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// syncHarvesters loads sources.json and reconciles the registered
// harvesters, per-type thresholds, freshness windows and cron schedules
// against it. Called at startup and on every hot reload.
func syncHarvesters(
	filePath string,
	coordinator *harvest.Coordinator,
	runner *harvest.Runner,
	gate *harvest.FreshnessGate,
	fetcher *harvest.Fetcher,
	harvestScheduler *jobs.HarvestScheduler,
) error {
	sourcesCfg, err := config.LoadSources(filePath)
	if err != nil {
		return fmt.Errorf("failed to load sources config: %w", err)
	}

	enabled := make(map[models.SourceType]bool)
	for _, sc := range sourcesCfg.Sources {
		sourceType, err := models.ParseSourceType(sc.Type)
		if err != nil {
			log.Printf("⚠️ Skipping sources entry: %v", err)
			continue
		}
		if !sc.Enabled {
			continue
		}

		h, err := buildHarvester(sourceType, fetcher, sc.Sources)
		if err != nil {
			log.Printf("⚠️ %v", err)
			continue
		}
		coordinator.Register(h)
		enabled[sourceType] = true

		runner.SetThreshold(sourceType, sc.QualityThreshold)
		gate.SetTTL(sourceType, time.Duration(sc.CacheTTLHours)*time.Hour)
	}

	for _, t := range coordinator.EnabledTypes() {
		if !enabled[t] {
			coordinator.Unregister(t)
			log.Printf("⏸️ Harvester disabled by config: %s", t)
		}
	}

	return harvestScheduler.Reload(sourcesCfg)
}

// registerDefaultHarvesters brings up every harvester with no upstream
// endpoints, so manual harvests and cached reads still work when
// sources.json is missing.
func registerDefaultHarvesters(coordinator *harvest.Coordinator, fetcher *harvest.Fetcher) {
	for _, t := range models.AllSourceTypes {
		h, err := buildHarvester(t, fetcher, nil)
		if err != nil {
			continue
		}
		coordinator.Register(h)
	}
}

func buildHarvester(t models.SourceType, fetcher *harvest.Fetcher, sources []models.SourceEndpoint) (harvest.Harvester, error) {
	switch t {
	case models.SourceTrend:
		return harvest.NewTrendHarvester(fetcher, sources), nil
	case models.SourceAudio:
		return harvest.NewAudioHarvester(fetcher, sources), nil
	case models.SourceScreenplay:
		return harvest.NewScreenplayHarvester(fetcher, sources), nil
	case models.SourceCreator:
		return harvest.NewCreatorHarvester(fetcher, sources), nil
	case models.SourceDistribution:
		return harvest.NewDistributionHarvester(fetcher, sources), nil
	case models.SourceSound:
		return harvest.NewSoundHarvester(fetcher, sources), nil
	}
	return nil, fmt.Errorf("no harvester implemented for source type %q", t)
}

// startSourcesFileWatcher watches sources.json for changes and re-syncs
// harvesters and schedules automatically.
func startSourcesFileWatcher(
	filePath string,
	coordinator *harvest.Coordinator,
	runner *harvest.Runner,
	gate *harvest.FreshnessGate,
	fetcher *harvest.Fetcher,
	harvestScheduler *jobs.HarvestScheduler,
) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching
	// the file directly).
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce to avoid multiple syncs for rapid file changes.
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, re-syncing harvesters...", filePath)
					if err := syncHarvesters(filePath, coordinator, runner, gate, fetcher, harvestScheduler); err != nil {
						log.Printf("❌ Failed to sync harvesters after file change: %v", err)
					} else {
						log.Printf("✅ Harvesters synced successfully from %s", filePath)
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
