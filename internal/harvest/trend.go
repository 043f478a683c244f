package harvest

import (
	"time"

	"signalforge/internal/models"
)

// TrendHarvester collects trending-topic signals from social and chart
// aggregation APIs. Weights: 50% engagement, 30% recency, 20% validation.
type TrendHarvester struct {
	baseHarvester
}

func NewTrendHarvester(fetcher *Fetcher, sources []models.SourceEndpoint) *TrendHarvester {
	return &TrendHarvester{baseHarvester{
		name:         "trend_harvester",
		sourceType:   models.SourceTrend,
		fetcher:      fetcher,
		sources:      sources,
		analysisTask: "You are a trend analyst. Identify the strongest emerging content trends in these signals and what makes them spread.",
	}}
}

func (h *TrendHarvester) Parse(raw []RawItem) []ParsedItem {
	var parsed []ParsedItem
	for _, r := range raw {
		title := firstString(r.Data, "title", "name", "topic")
		url := firstString(r.Data, "url", "link")
		if title == "" || url == "" {
			continue
		}
		parsed = append(parsed, ParsedItem{
			Title:     title,
			SourceURL: url,
			Fields: map[string]any{
				"title":        title,
				"url":          url,
				"views":        firstFloat(r.Data, "views", "view_count"),
				"likes":        firstFloat(r.Data, "likes", "like_count"),
				"shares":       firstFloat(r.Data, "shares", "share_count"),
				"source_count": firstFloat(r.Data, "source_count", "platforms"),
				"published_at": getString(r.Data, "published_at", ""),
				"source":       r.Source.Name,
			},
		})
	}
	return parsed
}

func (h *TrendHarvester) Score(item ParsedItem) float64 {
	views := getFloat(item.Fields, "views", 0)
	likes := getFloat(item.Fields, "likes", 0)
	shares := getFloat(item.Fields, "shares", 0)
	return WeightedScore([]Signal{
		{Name: "engagement", Value: LogScale(views+5*likes+10*shares, 2.0), Weight: 0.5},
		{Name: "recency", Value: RecencyScore(getTime(item.Fields, "published_at"), 48 * time.Hour), Weight: 0.3},
		{Name: "validation", Value: RatioScore(getFloat(item.Fields, "source_count", 0), 5), Weight: 0.2},
	})
}
