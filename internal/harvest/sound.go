package harvest

import (
	"time"

	"signalforge/internal/models"
)

// SoundHarvester collects production-technique signals (sample packs,
// sound design patterns, mixing presets). Weights: 40% adoption,
// 35% novelty, 25% fidelity.
type SoundHarvester struct {
	baseHarvester
}

func NewSoundHarvester(fetcher *Fetcher, sources []models.SourceEndpoint) *SoundHarvester {
	return &SoundHarvester{baseHarvester{
		name:         "sound_harvester",
		sourceType:   models.SourceSound,
		fetcher:      fetcher,
		sources:      sources,
		analysisTask: "You are a sound designer. Summarize the production techniques behind these sounds and how they could be reproduced.",
	}}
}

func (h *SoundHarvester) Parse(raw []RawItem) []ParsedItem {
	var parsed []ParsedItem
	for _, r := range raw {
		name := firstString(r.Data, "name", "title", "pack")
		url := firstString(r.Data, "url", "link")
		if name == "" || url == "" {
			continue
		}
		parsed = append(parsed, ParsedItem{
			Title:     name,
			SourceURL: url,
			Fields: map[string]any{
				"name":        name,
				"url":         url,
				"technique":   getString(r.Data, "technique", ""),
				"usage_count": firstFloat(r.Data, "usage_count", "downloads"),
				"created_at":  getString(r.Data, "created_at", ""),
				"sample_rate": firstFloat(r.Data, "sample_rate", "samplerate"),
				"source":      r.Source.Name,
			},
		})
	}
	return parsed
}

func (h *SoundHarvester) Score(item ParsedItem) float64 {
	return WeightedScore([]Signal{
		{Name: "adoption", Value: LogScale(getFloat(item.Fields, "usage_count", 0), 2.2), Weight: 0.4},
		{Name: "novelty", Value: RecencyScore(getTime(item.Fields, "created_at"), 30 * 24 * time.Hour), Weight: 0.35},
		{Name: "fidelity", Value: RatioScore(getFloat(item.Fields, "sample_rate", 0), 96000), Weight: 0.25},
	})
}
