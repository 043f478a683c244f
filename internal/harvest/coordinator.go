package harvest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"signalforge/internal/database"
	"signalforge/internal/models"
)

var (
	harvestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalforge_harvests_total",
		Help: "Harvest invocations by source type and outcome.",
	}, []string{"source_type", "outcome"})

	recordsHarvested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalforge_records_harvested_total",
		Help: "Records persisted per source type.",
	}, []string{"source_type"})
)

// TypeResult pairs one source type's harvest outcome with its error, for
// "all" harvests where per-type failures must not abort siblings.
type TypeResult struct {
	SourceType models.SourceType     `json:"sourceType"`
	Result     *models.HarvestResult `json:"result,omitempty"`
	Err        error                 `json:"-"`
}

// Coordinator exposes harvesting as a callable operation per source type
// or for all types at once. Each source type is owned by exactly one
// harvester, so concurrent harvests never race on the same rows.
type Coordinator struct {
	db         *database.DB
	runner     *Runner
	timeout    time.Duration
	statsCache *gocache.Cache

	mu         sync.RWMutex
	harvesters map[models.SourceType]Harvester
	order      []models.SourceType
}

// NewCoordinator creates a coordinator with a per-harvester timeout.
func NewCoordinator(db *database.DB, runner *Runner, timeout time.Duration) *Coordinator {
	return &Coordinator{
		db:         db,
		runner:     runner,
		timeout:    timeout,
		statsCache: gocache.New(30*time.Second, time.Minute),
		harvesters: make(map[models.SourceType]Harvester),
	}
}

// Register adds a harvester. Registering the same source type twice
// replaces the previous owner (used by config hot reload).
func (c *Coordinator) Register(h Harvester) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.harvesters[h.SourceType()]; !exists {
		c.order = append(c.order, h.SourceType())
	}
	c.harvesters[h.SourceType()] = h
	log.Printf("✅ [COORDINATOR] Registered harvester: %s (%s)", h.Name(), h.SourceType())
}

// Unregister removes the harvester for a source type (disabled in config).
func (c *Coordinator) Unregister(t models.SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.harvesters, t)
	for i, st := range c.order {
		if st == t {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// EnabledTypes returns the registered source types in registration order.
func (c *Coordinator) EnabledTypes() []models.SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.SourceType(nil), c.order...)
}

// Harvest runs one source type under the per-harvester timeout.
func (c *Coordinator) Harvest(ctx context.Context, t models.SourceType, force bool) (*models.HarvestResult, error) {
	c.mu.RLock()
	h, ok := c.harvesters[t]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, t)
	}

	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.runner.Harvest(hctx, h, force)
	if err != nil {
		harvestsTotal.WithLabelValues(string(t), "error").Inc()
		return nil, err
	}

	outcome := "live"
	if result.FromCache {
		outcome = "cache"
	} else {
		recordsHarvested.WithLabelValues(string(t)).Add(float64(result.Count))
	}
	harvestsTotal.WithLabelValues(string(t), outcome).Inc()
	return result, nil
}

// HarvestAll harvests every registered source type concurrently, one
// goroutine per type. A failing type contributes an error entry and zero
// records; it never aborts its siblings.
func (c *Coordinator) HarvestAll(ctx context.Context, force bool) []TypeResult {
	types := c.EnabledTypes()
	results := make([]TypeResult, len(types))

	var wg sync.WaitGroup
	for i, t := range types {
		wg.Add(1)
		go func(i int, t models.SourceType) {
			defer wg.Done()
			result, err := c.Harvest(ctx, t, force)
			results[i] = TypeResult{SourceType: t, Result: result, Err: err}
			if err != nil {
				log.Printf("❌ [COORDINATOR] %s harvest failed: %v", t, err)
			}
		}(i, t)
	}
	wg.Wait()

	return results
}

// Stats returns per-harvester run statistics, memoized briefly so /stats
// polling doesn't hammer the store.
func (c *Coordinator) Stats(ctx context.Context) ([]models.HarvesterStats, error) {
	if cached, found := c.statsCache.Get("stats"); found {
		return cached.([]models.HarvesterStats), nil
	}
	stats, err := c.db.HarvesterStats(ctx)
	if err != nil {
		return nil, err
	}
	c.statsCache.Set("stats", stats, gocache.DefaultExpiration)
	return stats, nil
}
