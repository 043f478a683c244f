package harvest

import (
	"time"

	"signalforge/internal/models"
)

// AudioHarvester collects track-level signals from streaming and chart
// APIs. Weights: 40% popularity, 30% freshness, 30% playlist reach.
type AudioHarvester struct {
	baseHarvester
}

func NewAudioHarvester(fetcher *Fetcher, sources []models.SourceEndpoint) *AudioHarvester {
	return &AudioHarvester{baseHarvester{
		name:         "audio_harvester",
		sourceType:   models.SourceAudio,
		fetcher:      fetcher,
		sources:      sources,
		analysisTask: "You are a music A&R analyst. Summarize the sonic and structural qualities these tracks share and which are worth emulating.",
	}}
}

func (h *AudioHarvester) Parse(raw []RawItem) []ParsedItem {
	var parsed []ParsedItem
	for _, r := range raw {
		title := firstString(r.Data, "title", "track", "name")
		url := firstString(r.Data, "url", "link", "stream_url")
		if title == "" || url == "" {
			continue
		}
		parsed = append(parsed, ParsedItem{
			Title:     title,
			SourceURL: url,
			Fields: map[string]any{
				"title":          title,
				"url":            url,
				"artist":         firstString(r.Data, "artist", "creator"),
				"genre":          getString(r.Data, "genre", ""),
				"plays":          firstFloat(r.Data, "plays", "play_count", "streams"),
				"playlist_count": firstFloat(r.Data, "playlist_count", "playlists"),
				"released_at":    firstString(r.Data, "released_at", "release_date"),
				"source":         r.Source.Name,
			},
		})
	}
	return parsed
}

func (h *AudioHarvester) Score(item ParsedItem) float64 {
	return WeightedScore([]Signal{
		{Name: "popularity", Value: LogScale(getFloat(item.Fields, "plays", 0), 1.8), Weight: 0.4},
		{Name: "freshness", Value: RecencyScore(getTime(item.Fields, "released_at"), 14 * 24 * time.Hour), Weight: 0.3},
		{Name: "playlist_reach", Value: LogScale(getFloat(item.Fields, "playlist_count", 0), 3.5), Weight: 0.3},
	})
}
