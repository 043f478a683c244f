package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"signalforge/internal/models"
)

// Config holds all application configuration. It is populated once at
// startup, validated eagerly, and passed by reference to all components.
type Config struct {
	Port         string
	DatabasePath string
	SourcesFile  string

	// Analysis model configuration
	AnalysisBaseURL   string
	AnalysisAPIKey    string
	AnalysisModel     string
	AnalysisTemp      float64
	AnalysisMaxTokens int
	AnalysisRetries   int
	AnalysisRateRPS   float64

	// Harvesting policy
	QualityThreshold float64
	CacheTTL         time.Duration
	MinFreshRecords  int
	HarvesterTimeout time.Duration
	FetchRateRPS     float64

	// Training policy
	AgentTimeout         time.Duration
	PipelineTimeout      time.Duration
	MinRecordsPerType    int
	ProductionRunEnabled bool
	AgentOrder           []string
	AgentBaseURL         string
	TrainingSchedule     string

	// Persistence policy
	CleanupAfterDays int
	CleanupSchedule  string
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3001"),
		DatabasePath: getEnv("DATABASE_PATH", "signalforge.db"),
		SourcesFile:  getEnv("SOURCES_FILE", "sources.json"),

		AnalysisBaseURL:   getEnv("ANALYSIS_BASE_URL", "https://api.openai.com/v1"),
		AnalysisAPIKey:    getEnv("ANALYSIS_API_KEY", ""),
		AnalysisModel:     getEnv("ANALYSIS_MODEL", "gpt-4o-mini"),
		AnalysisTemp:      getFloatEnv("ANALYSIS_TEMPERATURE", 0.4),
		AnalysisMaxTokens: getIntEnv("ANALYSIS_MAX_TOKENS", 2048),
		AnalysisRetries:   getIntEnv("ANALYSIS_MAX_RETRIES", 3),
		AnalysisRateRPS:   getFloatEnv("ANALYSIS_RATE_RPS", 1),

		QualityThreshold: getFloatEnv("QUALITY_THRESHOLD", 7.0),
		CacheTTL:         time.Duration(getIntEnv("CACHE_TTL_HOURS", 24)) * time.Hour,
		MinFreshRecords:  getIntEnv("MIN_FRESH_RECORDS", 3),
		HarvesterTimeout: time.Duration(getIntEnv("HARVESTER_TIMEOUT_SECONDS", 300)) * time.Second,
		FetchRateRPS:     getFloatEnv("FETCH_RATE_RPS", 5),

		AgentTimeout:         time.Duration(getIntEnv("AGENT_TIMEOUT_SECONDS", 300)) * time.Second,
		PipelineTimeout:      time.Duration(getIntEnv("PIPELINE_TIMEOUT_SECONDS", 1800)) * time.Second,
		MinRecordsPerType:    getIntEnv("MIN_RECORDS_PER_TYPE", 1),
		ProductionRunEnabled: getBoolEnv("PRODUCTION_RUN_ENABLED", false),
		AgentOrder:           getListEnv("AGENT_ORDER", defaultAgentOrder),
		AgentBaseURL:         getEnv("AGENT_BASE_URL", "http://localhost:4500"),
		TrainingSchedule:     getEnv("TRAINING_SCHEDULE", "0 3 * * *"),

		CleanupAfterDays: getIntEnv("CLEANUP_AFTER_DAYS", 30),
		CleanupSchedule:  getEnv("CLEANUP_SCHEDULE", "0 4 * * *"),
	}
}

// defaultAgentOrder is the static dependency ordering for agent training:
// agents that consume another agent's output come after their dependency.
var defaultAgentOrder = []string{
	"trend_analyst",
	"sound_designer",
	"music_producer",
	"screenwriter",
	"video_director",
	"distribution_strategist",
}

// Validate fails fast on configuration that would break at runtime.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 10 {
		return fmt.Errorf("QUALITY_THRESHOLD must be in [0,10], got %v", c.QualityThreshold)
	}
	if c.HarvesterTimeout <= 0 || c.PipelineTimeout <= 0 || c.AgentTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.FetchRateRPS <= 0 {
		return fmt.Errorf("FETCH_RATE_RPS must be positive, got %v", c.FetchRateRPS)
	}
	if len(c.AgentOrder) == 0 {
		return fmt.Errorf("agent order must name at least one agent")
	}
	return nil
}

// LoadSources loads per-source-type configuration from a JSON file.
func LoadSources(filePath string) (*models.SourcesConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var cfg models.SourcesConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources JSON: %w", err)
	}

	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
