package harvest

import "signalforge/internal/models"

// ScreenplayHarvester collects narrative-structure signals from script
// libraries and story-analysis feeds. Weights: 40% narrative strength,
// 35% audience engagement, 25% originality.
type ScreenplayHarvester struct {
	baseHarvester
}

func NewScreenplayHarvester(fetcher *Fetcher, sources []models.SourceEndpoint) *ScreenplayHarvester {
	return &ScreenplayHarvester{baseHarvester{
		name:         "screenplay_harvester",
		sourceType:   models.SourceScreenplay,
		fetcher:      fetcher,
		sources:      sources,
		analysisTask: "You are a story editor. Extract the narrative devices and act structures these scripts rely on, and which patterns audiences respond to.",
	}}
}

func (h *ScreenplayHarvester) Parse(raw []RawItem) []ParsedItem {
	var parsed []ParsedItem
	for _, r := range raw {
		title := firstString(r.Data, "title", "name")
		url := firstString(r.Data, "url", "link")
		if title == "" || url == "" {
			continue
		}
		parsed = append(parsed, ParsedItem{
			Title:     title,
			SourceURL: url,
			Fields: map[string]any{
				"title":       title,
				"url":         url,
				"genre":       getString(r.Data, "genre", ""),
				"structure":   firstString(r.Data, "structure", "act_structure"),
				"rating":      firstFloat(r.Data, "rating", "score"),
				"votes":       firstFloat(r.Data, "votes", "review_count"),
				"originality": getFloat(r.Data, "originality", 5),
				"source":      r.Source.Name,
			},
		})
	}
	return parsed
}

func (h *ScreenplayHarvester) Score(item ParsedItem) float64 {
	return WeightedScore([]Signal{
		{Name: "narrative", Value: getFloat(item.Fields, "rating", 0), Weight: 0.4},
		{Name: "engagement", Value: LogScale(getFloat(item.Fields, "votes", 0), 2.5), Weight: 0.35},
		{Name: "originality", Value: getFloat(item.Fields, "originality", 0), Weight: 0.25},
	})
}
