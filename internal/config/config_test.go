package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"signalforge/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "3001" {
		t.Errorf("expected default port 3001, got %s", cfg.Port)
	}
	if cfg.QualityThreshold != 7.0 {
		t.Errorf("expected default threshold 7.0, got %v", cfg.QualityThreshold)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected default TTL 24h, got %v", cfg.CacheTTL)
	}
	if cfg.HarvesterTimeout != 300*time.Second {
		t.Errorf("expected default harvester timeout 300s, got %v", cfg.HarvesterTimeout)
	}
	if cfg.PipelineTimeout != 1800*time.Second {
		t.Errorf("expected default pipeline timeout 1800s, got %v", cfg.PipelineTimeout)
	}
	if len(cfg.AgentOrder) != 6 {
		t.Errorf("expected 6 agents in default order, got %d", len(cfg.AgentOrder))
	}
	if cfg.AgentOrder[0] != "trend_analyst" {
		t.Errorf("expected trend_analyst first, got %s", cfg.AgentOrder[0])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUALITY_THRESHOLD", "8.5")
	t.Setenv("CACHE_TTL_HOURS", "6")
	t.Setenv("PORT", "9999")

	cfg := Load()
	if cfg.QualityThreshold != 8.5 {
		t.Errorf("expected threshold 8.5, got %v", cfg.QualityThreshold)
	}
	if cfg.CacheTTL != 6*time.Hour {
		t.Errorf("expected TTL 6h, got %v", cfg.CacheTTL)
	}
	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %s", cfg.Port)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"threshold above scale", func(c *Config) { c.QualityThreshold = 11 }},
		{"threshold below scale", func(c *Config) { c.QualityThreshold = -1 }},
		{"zero pipeline timeout", func(c *Config) { c.PipelineTimeout = 0 }},
		{"zero fetch rate", func(c *Config) { c.FetchRateRPS = 0 }},
		{"empty agent order", func(c *Config) { c.AgentOrder = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Load().Validate(); err != nil {
		t.Errorf("default configuration must validate: %v", err)
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	content := `{
		"sources": [
			{
				"type": "trend",
				"enabled": true,
				"schedule": "0 */6 * * *",
				"qualityThreshold": 7.5,
				"cacheTtlHours": 12,
				"sources": [
					{"name": "chartpulse", "url": "https://api.chartpulse.example/trending", "apiKeyEnv": "CHARTPULSE_API_KEY"}
				]
			},
			{"type": "audio", "enabled": false, "sources": []}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := LoadSources(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 source blocks, got %d", len(cfg.Sources))
	}

	trend, ok := cfg.ForType(models.SourceTrend)
	if !ok {
		t.Fatal("expected a trend block")
	}
	if !trend.Enabled || trend.Schedule != "0 */6 * * *" || trend.QualityThreshold != 7.5 || trend.CacheTTLHours != 12 {
		t.Errorf("unexpected trend block: %+v", trend)
	}
	if len(trend.Sources) != 1 || trend.Sources[0].APIKeyEnv != "CHARTPULSE_API_KEY" {
		t.Errorf("unexpected trend sources: %+v", trend.Sources)
	}

	if _, err := LoadSources(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
