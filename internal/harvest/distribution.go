package harvest

import (
	"time"

	"signalforge/internal/models"
)

// DistributionHarvester collects channel-performance signals (reach,
// conversion, posting windows). Weights: 50% reach, 30% conversion,
// 20% timing.
type DistributionHarvester struct {
	baseHarvester
}

func NewDistributionHarvester(fetcher *Fetcher, sources []models.SourceEndpoint) *DistributionHarvester {
	return &DistributionHarvester{baseHarvester{
		name:         "distribution_harvester",
		sourceType:   models.SourceDistribution,
		fetcher:      fetcher,
		sources:      sources,
		analysisTask: "You are a distribution strategist. Identify which channels and posting windows convert best for this kind of content.",
	}}
}

func (h *DistributionHarvester) Parse(raw []RawItem) []ParsedItem {
	var parsed []ParsedItem
	for _, r := range raw {
		channel := firstString(r.Data, "channel", "platform", "name")
		url := firstString(r.Data, "url", "link")
		if channel == "" || url == "" {
			continue
		}
		parsed = append(parsed, ParsedItem{
			Title:     channel,
			SourceURL: url,
			Fields: map[string]any{
				"channel":         channel,
				"url":             url,
				"reach":           firstFloat(r.Data, "reach", "impressions"),
				"conversion_rate": firstFloat(r.Data, "conversion_rate", "ctr"),
				"posted_at":       getString(r.Data, "posted_at", ""),
				"format":          getString(r.Data, "format", ""),
				"source":          r.Source.Name,
			},
		})
	}
	return parsed
}

func (h *DistributionHarvester) Score(item ParsedItem) float64 {
	return WeightedScore([]Signal{
		{Name: "reach", Value: LogScale(getFloat(item.Fields, "reach", 0), 1.6), Weight: 0.5},
		{Name: "conversion", Value: RatioScore(getFloat(item.Fields, "conversion_rate", 0), 10), Weight: 0.3},
		{Name: "timing", Value: RecencyScore(getTime(item.Fields, "posted_at"), 72 * time.Hour), Weight: 0.2},
	})
}
