package models

// SourceEndpoint is one upstream endpoint a harvester can pull from.
type SourceEndpoint struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	APIKeyEnv string `json:"apiKeyEnv,omitempty"` // env var holding the key, never the key itself
}

// SourceConfig configures one source type's harvesting policy.
type SourceConfig struct {
	Type             string           `json:"type"`
	Enabled          bool             `json:"enabled"`
	Schedule         string           `json:"schedule,omitempty"` // cron expression, empty = manual only
	Sources          []SourceEndpoint `json:"sources"`
	QualityThreshold float64          `json:"qualityThreshold,omitempty"` // 0 = use global default
	CacheTTLHours    int              `json:"cacheTtlHours,omitempty"`    // 0 = use global default
}

// SourcesConfig is the shape of sources.json.
type SourcesConfig struct {
	Sources []SourceConfig `json:"sources"`
}

// ForType returns the config block for one source type, if present.
func (c *SourcesConfig) ForType(t SourceType) (SourceConfig, bool) {
	for _, sc := range c.Sources {
		if sc.Type == string(t) {
			return sc, true
		}
	}
	return SourceConfig{}, false
}
