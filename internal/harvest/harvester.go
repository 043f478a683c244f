package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"signalforge/internal/database"
	"signalforge/internal/logging"
	"signalforge/internal/models"
)

// RawItem is one item as received from a source, before normalization.
type RawItem struct {
	Source models.SourceEndpoint
	Data   map[string]any
}

// ParsedItem is a harvester's canonical item shape after normalization.
// Fields holds the harvester-specific signal inputs; Payload is the
// serialized form persisted as the record's raw payload.
type ParsedItem struct {
	Title     string
	SourceURL string
	Fields    map[string]any
}

// Harvester is the contract every concrete source-category harvester
// implements. The shared orchestration in Runner.Harvest drives these five
// capabilities; variants supply only their sources, normalization, weight
// table and prompt shape.
type Harvester interface {
	Name() string
	SourceType() models.SourceType

	// ListSources returns the origin endpoints this harvester pulls from.
	ListSources() []models.SourceEndpoint

	// ExtractRaw fetches one source. "No data" is an empty list, not an
	// error; transport failures surface as *TransportError.
	ExtractRaw(ctx context.Context, source models.SourceEndpoint) ([]RawItem, error)

	// Parse normalizes raw items into the canonical shape, silently
	// dropping items that fail required-field validation.
	Parse(raw []RawItem) []ParsedItem

	// Score computes the weighted quality score in [0,10].
	Score(item ParsedItem) float64

	// AnalysisPrompt builds the analysis payload, sampling input down to
	// a size budget. It never fails on oversized input.
	AnalysisPrompt(items []ParsedItem) string
}

// Analyzer is the external generative-analysis service as the harvest
// layer sees it: text in, structured JSON out, best effort.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// Runner provides the shared harvest orchestration used by every
// harvester: cache gate, extract → parse → score, quality filtering,
// best-effort analysis, transactional persistence and audit logging.
type Runner struct {
	db        *database.DB
	gate      *FreshnessGate
	analyzer  Analyzer
	threshold float64
	ttl       time.Duration

	mu        sync.RWMutex
	overrides map[models.SourceType]float64
}

// NewRunner wires the shared orchestration. analyzer may be nil, in which
// case harvests persist without analyzed payloads.
func NewRunner(db *database.DB, gate *FreshnessGate, analyzer Analyzer, threshold float64, ttl time.Duration) *Runner {
	return &Runner{
		db:        db,
		gate:      gate,
		analyzer:  analyzer,
		threshold: threshold,
		ttl:       ttl,
		overrides: make(map[models.SourceType]float64),
	}
}

// SetThreshold overrides the quality floor for one source type.
func (r *Runner) SetThreshold(t models.SourceType, threshold float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if threshold > 0 {
		r.overrides[t] = threshold
	} else {
		delete(r.overrides, t)
	}
}

// Threshold returns the quality floor applied to one source type.
func (r *Runner) Threshold(t models.SourceType) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.overrides[t]; ok {
		return v
	}
	return r.threshold
}

// Harvest runs one full harvest for h. With forceRefresh=false, fresh
// persisted data short-circuits the network entirely.
func (r *Runner) Harvest(ctx context.Context, h Harvester, forceRefresh bool) (*models.HarvestResult, error) {
	start := time.Now()
	hlog := logging.WithHarvester(slog.Default(), h.Name(), string(h.SourceType()))
	hlog.Debug("harvest started", "forceRefresh", forceRefresh)

	if !forceRefresh {
		if cached, ok, err := r.gate.Fresh(ctx, h.SourceType()); err != nil {
			return nil, fmt.Errorf("freshness check failed: %w", err)
		} else if ok {
			log.Printf("📦 [HARVEST] %s: serving %d records from cache", h.Name(), len(cached))
			return &models.HarvestResult{
				SourceType: h.SourceType(),
				Count:      len(cached),
				Items:      cached,
				FromCache:  true,
			}, nil
		}
	}

	var parsed []ParsedItem
	var sourceErrors int
	sources := h.ListSources()

	for _, src := range sources {
		if ctx.Err() != nil {
			return nil, r.failHarvest(h, start, ctx.Err())
		}

		raw, err := h.ExtractRaw(ctx, src)
		if err != nil {
			if !IsTransport(err) {
				return nil, r.failHarvest(h, start, err)
			}
			sourceErrors++
			log.Printf("⚠️ [HARVEST] %s: source %s failed: %v", h.Name(), src.Name, err)
			continue
		}
		parsed = append(parsed, h.Parse(raw)...)
	}

	if len(sources) > 0 && sourceErrors == len(sources) {
		return nil, r.failHarvest(h, start, fmt.Errorf("all %d sources failed", len(sources)))
	}

	// Score and filter below-threshold items.
	threshold := r.Threshold(h.SourceType())
	var kept []ParsedItem
	var scores []float64
	for _, item := range parsed {
		score := h.Score(item)
		if score < threshold {
			continue
		}
		kept = append(kept, item)
		scores = append(scores, score)
	}

	// Analysis is best effort: a failure never blocks persistence.
	var analyzed string
	if r.analyzer != nil && len(kept) > 0 {
		result, err := r.analyzer.Analyze(ctx, h.AnalysisPrompt(kept))
		if err != nil {
			log.Printf("⚠️ [HARVEST] %s: analysis failed, persisting without it: %v", h.Name(), err)
		} else {
			analyzed = result
		}
	}

	harvestedAt := time.Now()
	records := make([]models.HarvestedRecord, 0, len(kept))
	seen := make(map[string]bool, len(kept))
	for i, item := range kept {
		// Two sources can yield the same URL in one batch. The store's
		// unique tuple would drop the duplicate row, so the result must
		// not count it either.
		if seen[item.SourceURL] {
			continue
		}
		seen[item.SourceURL] = true
		payload, err := json.Marshal(item.Fields)
		if err != nil {
			continue
		}
		records = append(records, models.HarvestedRecord{
			SourceType:      h.SourceType(),
			HarvesterName:   h.Name(),
			RawPayload:      string(payload),
			AnalyzedPayload: analyzed,
			QualityScore:    scores[i],
			SourceURL:       item.SourceURL,
			HarvestedAt:     harvestedAt,
			ExpiresAt:       harvestedAt.Add(r.ttl),
		})
	}

	status := models.HarvestLogSuccess
	if sourceErrors > 0 {
		status = models.HarvestLogWarning
	}
	entry := models.HarvestLogEntry{
		HarvesterName:   h.Name(),
		Status:          status,
		RecordCount:     len(records),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Timestamp:       time.Now(),
	}

	inserted, err := r.db.InsertHarvest(ctx, records, entry)
	if err != nil {
		// Storage failure is fatal for this harvest call; the log entry
		// write below is best effort since the store may be gone entirely.
		return nil, r.failHarvest(h, start, fmt.Errorf("persistence failure: %w", err))
	}

	r.gate.Invalidate(h.SourceType())

	log.Printf("✅ [HARVEST] %s: %d/%d items kept (threshold %.1f), %d persisted in %v",
		h.Name(), len(kept), len(parsed), threshold, inserted, time.Since(start))

	return &models.HarvestResult{
		SourceType: h.SourceType(),
		Count:      len(records),
		Items:      records,
		FromCache:  false,
	}, nil
}

// failHarvest writes the error audit entry and returns the wrapped error.
func (r *Runner) failHarvest(h Harvester, start time.Time, cause error) error {
	entry := models.HarvestLogEntry{
		HarvesterName:   h.Name(),
		Status:          models.HarvestLogError,
		RecordCount:     0,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		ErrorMessage:    cause.Error(),
		Timestamp:       time.Now(),
	}
	// Log with a fresh context: the harvest context may already be
	// cancelled, and the audit trail must still record the failure.
	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.db.InsertLog(logCtx, entry); err != nil {
		log.Printf("❌ [HARVEST] %s: failed to write error log entry: %v", h.Name(), err)
	}
	return fmt.Errorf("%s harvest failed: %w", h.Name(), cause)
}
