package harvest

import "signalforge/internal/models"

// CreatorHarvester collects creator/channel signals from platform APIs.
// Weights: 45% influence, 30% posting consistency, 25% growth.
type CreatorHarvester struct {
	baseHarvester
}

func NewCreatorHarvester(fetcher *Fetcher, sources []models.SourceEndpoint) *CreatorHarvester {
	return &CreatorHarvester{baseHarvester{
		name:         "creator_harvester",
		sourceType:   models.SourceCreator,
		fetcher:      fetcher,
		sources:      sources,
		analysisTask: "You are an audience strategist. Characterize what these fast-growing creators have in common in format, cadence and positioning.",
	}}
}

func (h *CreatorHarvester) Parse(raw []RawItem) []ParsedItem {
	var parsed []ParsedItem
	for _, r := range raw {
		name := firstString(r.Data, "name", "handle", "channel")
		url := firstString(r.Data, "url", "profile_url")
		if name == "" || url == "" {
			continue
		}
		parsed = append(parsed, ParsedItem{
			Title:     name,
			SourceURL: url,
			Fields: map[string]any{
				"name":             name,
				"url":              url,
				"platform":         getString(r.Data, "platform", ""),
				"followers":        firstFloat(r.Data, "followers", "subscriber_count"),
				"posts_last_month": firstFloat(r.Data, "posts_last_month", "monthly_posts"),
				"growth_rate":      firstFloat(r.Data, "growth_rate", "growth_pct"),
				"source":           r.Source.Name,
			},
		})
	}
	return parsed
}

func (h *CreatorHarvester) Score(item ParsedItem) float64 {
	return WeightedScore([]Signal{
		{Name: "influence", Value: LogScale(getFloat(item.Fields, "followers", 0), 1.4), Weight: 0.45},
		{Name: "consistency", Value: RatioScore(getFloat(item.Fields, "posts_last_month", 0), 30), Weight: 0.30},
		{Name: "growth", Value: RatioScore(getFloat(item.Fields, "growth_rate", 0), 20), Weight: 0.25},
	})
}
