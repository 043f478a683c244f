package harvest

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"signalforge/internal/database"
	"signalforge/internal/models"
)

// FreshnessGate decides, per source type, whether persisted data is fresh
// enough to reuse instead of re-harvesting. It is a read-only decision
// function over the store; it never deletes or mutates records.
//
// A short-lived in-process memo (go-cache) absorbs repeated freshness
// checks between harvests so polling callers don't hit SQLite every time.
type FreshnessGate struct {
	db         *database.DB
	memo       *gocache.Cache
	maxAge     time.Duration
	minRecords int

	mu         sync.RWMutex
	ttlPerType map[models.SourceType]time.Duration
}

const memoTTL = 30 * time.Second

// NewFreshnessGate creates a gate with a default max-age window and the
// minimum record count required to consider cached data usable.
func NewFreshnessGate(db *database.DB, maxAge time.Duration, minRecords int) *FreshnessGate {
	return &FreshnessGate{
		db:         db,
		memo:       gocache.New(memoTTL, 2*memoTTL),
		maxAge:     maxAge,
		minRecords: minRecords,
		ttlPerType: make(map[models.SourceType]time.Duration),
	}
}

// SetTTL overrides the max-age window for one source type. ttl<=0 resets
// the type to the default window.
func (g *FreshnessGate) SetTTL(t models.SourceType, ttl time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ttl > 0 {
		g.ttlPerType[t] = ttl
	} else {
		delete(g.ttlPerType, t)
	}
}

// TTL returns the effective max-age window for a source type.
func (g *FreshnessGate) TTL(t models.SourceType) time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if ttl, ok := g.ttlPerType[t]; ok {
		return ttl
	}
	return g.maxAge
}

// Fresh returns the most recent persisted records for t when they are
// within the freshness window and at least minRecords exist. ok=false
// signals stale: the caller must re-harvest.
func (g *FreshnessGate) Fresh(ctx context.Context, t models.SourceType) ([]models.HarvestedRecord, bool, error) {
	if cached, found := g.memo.Get(string(t)); found {
		records := cached.([]models.HarvestedRecord)
		return records, true, nil
	}

	records, err := g.db.QueryRecords(ctx, database.RecordQuery{
		SourceType: t,
		MaxAge:     g.TTL(t),
	})
	if err != nil {
		return nil, false, err
	}
	if len(records) < g.minRecords {
		return nil, false, nil
	}

	g.memo.Set(string(t), records, memoTTL)
	return records, true, nil
}

// Invalidate drops the memo for t after new records land.
func (g *FreshnessGate) Invalidate(t models.SourceType) {
	g.memo.Delete(string(t))
}
