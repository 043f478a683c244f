package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"signalforge/internal/models"
)

// Prompt size budget for analysis cost control. Oversized input is sampled
// down, never rejected.
const (
	maxPromptItems = 20
	maxPromptChars = 8000
)

// baseHarvester carries the plumbing shared by all six variants: identity,
// configured sources, the rate-limited fetcher, and prompt assembly.
// Concrete harvesters embed it and add Parse + Score.
type baseHarvester struct {
	name         string
	sourceType   models.SourceType
	fetcher      *Fetcher
	sources      []models.SourceEndpoint
	analysisTask string
}

func (b *baseHarvester) Name() string                  { return b.name }
func (b *baseHarvester) SourceType() models.SourceType { return b.sourceType }

func (b *baseHarvester) ListSources() []models.SourceEndpoint {
	return b.sources
}

func (b *baseHarvester) ExtractRaw(ctx context.Context, source models.SourceEndpoint) ([]RawItem, error) {
	data, err := b.fetcher.FetchJSON(ctx, source)
	if err != nil {
		return nil, err
	}
	raw := make([]RawItem, 0, len(data))
	for _, item := range data {
		raw = append(raw, RawItem{Source: source, Data: item})
	}
	return raw, nil
}

// AnalysisPrompt renders the analysis request: a task line followed by one
// JSON line per item, truncated to the prompt budget.
func (b *baseHarvester) AnalysisPrompt(items []ParsedItem) string {
	var sb strings.Builder
	sb.WriteString(b.analysisTask)
	sb.WriteString("\nRespond with a JSON object: {\"summary\": string, \"key_signals\": [string], \"recommendation\": string}.\n\nItems:\n")

	count := len(items)
	if count > maxPromptItems {
		count = maxPromptItems
	}
	for i := 0; i < count; i++ {
		line, err := json.Marshal(items[i].Fields)
		if err != nil {
			continue
		}
		if sb.Len()+len(line) > maxPromptChars {
			break
		}
		sb.WriteString(fmt.Sprintf("- %s\n", line))
	}
	return sb.String()
}
