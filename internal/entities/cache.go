// Package entities maintains an in-memory snapshot of the hub's entity
// registry, refreshed periodically so the resolver and prompt builder
// never block on hub round-trips.
package entities

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hearthd/hearth/internal/homeassistant"
)

// Entity is one hub entity as seen at snapshot time.
type Entity struct {
	ID         string
	Domain     string
	Name       string // friendly name, or the object id if unset
	State      string
	Attributes map[string]any
}

// Snapshot is an immutable view of all entities at one fetch time.
// Callers must not mutate it; the cache hands the same snapshot to
// concurrent readers.
type Snapshot struct {
	Entities  []Entity
	byID      map[string]Entity
	FetchedAt time.Time
}

// Get looks up an entity by exact id.
func (s *Snapshot) Get(entityID string) (Entity, bool) {
	e, ok := s.byID[entityID]
	return e, ok
}

// Len returns the number of entities in the snapshot.
func (s *Snapshot) Len() int { return len(s.Entities) }

// DomainCounts returns entity counts per domain, for prompt summaries.
func (s *Snapshot) DomainCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.Entities {
		counts[e.Domain]++
	}
	return counts
}

// StatesSource fetches entity states. Satisfied by *homeassistant.Client.
type StatesSource interface {
	GetStates(ctx context.Context) ([]homeassistant.State, error)
}

// Cache holds the current snapshot and refreshes it from the hub.
// Readers always see either the previous complete snapshot or the new
// one, never a partial state. A failed refresh keeps the old snapshot.
type Cache struct {
	source   StatesSource
	interval time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	snap  *Snapshot
	group singleflight.Group
}

// NewCache creates a cache over source. interval controls both staleness
// and the background refresh cadence.
func NewCache(source StatesSource, interval time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Snapshot returns the current snapshot, or nil if no refresh has
// succeeded yet.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// IsStale reports whether the snapshot is older than the refresh
// interval (or missing entirely).
func (c *Cache) IsStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap == nil || time.Since(c.snap.FetchedAt) > c.interval
}

// Age returns the snapshot age, or a very large value if empty.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(c.snap.FetchedAt)
}

// Refresh fetches a fresh snapshot from the hub and swaps it in.
// Concurrent calls collapse into a single fetch; every caller gets the
// result of that one fetch. On failure the previous snapshot stays.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		states, err := c.source.GetStates(ctx)
		if err != nil {
			c.logger.Warn("entity cache refresh failed, keeping previous snapshot",
				"error", err,
				"age", c.Age().Round(time.Second),
			)
			return nil, fmt.Errorf("refresh entities: %w", err)
		}

		snap := buildSnapshot(states, time.Now())

		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()

		c.logger.Debug("entity cache refreshed", "entities", snap.Len())
		return nil, nil
	})
	return err
}

// EnsureFresh refreshes only if the snapshot is stale or missing.
func (c *Cache) EnsureFresh(ctx context.Context) error {
	if !c.IsStale() {
		return nil
	}
	return c.Refresh(ctx)
}

// Run refreshes on the configured interval until ctx is canceled. The
// initial refresh happens immediately.
func (c *Cache) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("initial entity cache refresh failed", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("entity cache refresh failed", "error", err)
			}
		}
	}
}

func buildSnapshot(states []homeassistant.State, now time.Time) *Snapshot {
	snap := &Snapshot{
		Entities:  make([]Entity, 0, len(states)),
		byID:      make(map[string]Entity, len(states)),
		FetchedAt: now,
	}

	for _, s := range states {
		domain, object, ok := homeassistant.SplitEntityID(s.EntityID)
		if !ok {
			continue
		}
		name := s.FriendlyName()
		if name == "" {
			name = strings.ReplaceAll(object, "_", " ")
		}
		e := Entity{
			ID:         s.EntityID,
			Domain:     domain,
			Name:       name,
			State:      s.State,
			Attributes: s.Attributes,
		}
		snap.Entities = append(snap.Entities, e)
		snap.byID[e.ID] = e
	}

	sort.Slice(snap.Entities, func(i, j int) bool {
		return snap.Entities[i].ID < snap.Entities[j].ID
	})

	return snap
}
