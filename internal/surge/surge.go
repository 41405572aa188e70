package surge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/observability"
)

// ErrStaleData means the cached multiplier is past the freshness threshold
// and a synchronous recompute also failed. Quote callers surface it; match
// callers fall back to the base multiplier instead of blocking.
var ErrStaleData = errors.New("surge: stale zone data")

// SupplyCounter reports available, non-stale drivers currently inside a zone.
// The geo index implements it.
type SupplyCounter interface {
	AvailableIn(zone models.SurgeZone) int64
}

// EventFeed injects floor multipliers for special events and time-of-day
// rules, bounded to a time window. Evaluated before the ratio-based value;
// the larger of the two wins.
type EventFeed interface {
	FloorFor(zoneID string, at time.Time) (float64, bool)
}

// TierCaps bound the multiplier a given customer tier can ever be charged.
type TierCaps struct {
	VIP     float64
	Premium float64
	Normal  float64 // platform-wide ceiling
}

func DefaultTierCaps() TierCaps {
	return TierCaps{VIP: 2.0, Premium: 2.5, Normal: 5.0}
}

func (c TierCaps) For(tier models.CustomerTier) float64 {
	switch tier {
	case models.TierVIP:
		return c.VIP
	case models.TierPremium:
		return c.Premium
	default:
		return c.Normal
	}
}

// Config tunes the manager. Zeros fall back to defaults.
type Config struct {
	DemandWindow   time.Duration // trailing demand window, default 30m
	RecomputeEvery time.Duration // timer cadence, default 60s
	FreshFor       time.Duration // cached value max age before forced recompute, default 90s
	MaxStepDown    float64       // max downward multiplier step per recompute, default 0.5
	Caps           TierCaps
}

func (c *Config) normalize() {
	if c.DemandWindow <= 0 {
		c.DemandWindow = 30 * time.Minute
	}
	if c.RecomputeEvery <= 0 {
		c.RecomputeEvery = 60 * time.Second
	}
	if c.FreshFor <= 0 {
		c.FreshFor = 90 * time.Second
	}
	if c.MaxStepDown <= 0 {
		c.MaxStepDown = 0.5
	}
	if c.Caps == (TierCaps{}) {
		c.Caps = DefaultTierCaps()
	}
}

type zoneState struct {
	mu      sync.Mutex
	zone    models.SurgeZone
	demand  []time.Time // request timestamps in the trailing window
	current float64
	supply  int64
	last    time.Time
}

// Manager maintains the live demand/supply multiplier per zone. Counters are
// bumped by many concurrent callers; recomputation runs on its own timer and
// snapshot reads never observe a torn value.
type Manager struct {
	mu     sync.RWMutex
	zones  map[string]*zoneState
	supply SupplyCounter
	events EventFeed
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(zones []models.SurgeZone, supply SupplyCounter, events EventFeed, cfg Config, logger *slog.Logger) *Manager {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		zones:  make(map[string]*zoneState, len(zones)),
		supply: supply,
		events: events,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, z := range zones {
		if z.BaseMultiplier <= 0 {
			z.BaseMultiplier = 1.0
		}
		m.zones[z.ID] = &zoneState{zone: z, current: z.BaseMultiplier}
	}
	return m
}

// RecordDemand counts a ride request at a point toward the trailing demand
// window of the containing zone, if any.
func (m *Manager) RecordDemand(p models.Coord) {
	zs := m.zoneFor(p)
	if zs == nil {
		return
	}
	now := m.now()
	zs.mu.Lock()
	zs.demand = append(zs.demand, now)
	zs.mu.Unlock()
}

// MultiplierFor returns the current multiplier for a point, clamped to the
// tier cap. If the cached value is stale a synchronous recompute is forced;
// when that fails the base multiplier is returned together with ErrStaleData
// so the caller can decide whether to degrade or refuse.
func (m *Manager) MultiplierFor(p models.Coord, tier models.CustomerTier) (float64, error) {
	zs := m.zoneFor(p)
	if zs == nil {
		return 1.0, nil
	}

	zs.mu.Lock()
	stale := m.now().Sub(zs.last) > m.cfg.FreshFor
	zs.mu.Unlock()
	if stale {
		if err := m.recomputeZone(zs); err != nil {
			zs.mu.Lock()
			base := zs.zone.BaseMultiplier
			zs.mu.Unlock()
			return clamp(base, base, m.cfg.Caps.For(tier)), ErrStaleData
		}
	}

	zs.mu.Lock()
	raw := zs.current
	base := zs.zone.BaseMultiplier
	zs.mu.Unlock()
	return clamp(raw, base, m.cfg.Caps.For(tier)), nil
}

// Run recomputes every zone on a fixed cadence until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RecomputeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RecomputeAll()
		}
	}
}

// RecomputeAll refreshes every zone once. Exposed for the timer loop and for
// tests that want deterministic recomputation points.
func (m *Manager) RecomputeAll() {
	m.mu.RLock()
	states := make([]*zoneState, 0, len(m.zones))
	for _, zs := range m.zones {
		states = append(states, zs)
	}
	m.mu.RUnlock()
	for _, zs := range states {
		if err := m.recomputeZone(zs); err != nil {
			m.logger.Warn("surge recompute failed", "zone", zs.zone.ID, "error", err)
		}
	}
}

func (m *Manager) recomputeZone(zs *zoneState) error {
	if m.supply == nil {
		return errors.New("surge: no supply counter")
	}
	now := m.now()
	supply := m.supply.AvailableIn(zs.zone)

	zs.mu.Lock()
	defer zs.mu.Unlock()

	// prune demand outside the trailing window
	cut := now.Add(-m.cfg.DemandWindow)
	keep := zs.demand[:0]
	for _, ts := range zs.demand {
		if ts.After(cut) {
			keep = append(keep, ts)
		}
	}
	zs.demand = keep

	demand := int64(len(zs.demand))
	ratio := float64(demand) / float64(max64(supply, 1))
	next := multiplierForRatio(ratio)

	if m.events != nil {
		if floor, ok := m.events.FloorFor(zs.zone.ID, now); ok && floor > next {
			next = floor
		}
	}
	if next < zs.zone.BaseMultiplier {
		next = zs.zone.BaseMultiplier
	}

	// Step-limit downward moves so riders never see the price collapse
	// between consecutive quotes. Recommended smoothing, pending product
	// sign-off on exact constants.
	if next < zs.current && zs.current-next > m.cfg.MaxStepDown {
		next = zs.current - m.cfg.MaxStepDown
	}

	zs.current = next
	zs.supply = supply
	zs.last = now
	observability.SurgeRecomputesTotal.Inc()
	return nil
}

// Fixed demand/supply breakpoints.
func multiplierForRatio(r float64) float64 {
	switch {
	case r >= 2.0:
		return 2.5
	case r >= 1.5:
		return 2.0
	case r >= 1.0:
		return 1.5
	case r >= 0.7:
		return 1.3
	default:
		return 1.0
	}
}

// Snapshot returns a consistent copy of every zone for dashboards.
func (m *Manager) Snapshot() []models.SurgeZone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SurgeZone, 0, len(m.zones))
	for _, zs := range m.zones {
		zs.mu.Lock()
		z := zs.zone
		z.CurrentMultiplier = zs.current
		z.DemandCount = int64(len(zs.demand))
		z.SupplyCount = zs.supply
		z.LastRecomputedAt = zs.last
		zs.mu.Unlock()
		out = append(out, z)
	}
	return out
}

func (m *Manager) zoneFor(p models.Coord) *zoneState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, zs := range m.zones {
		if zs.zone.Contains(p) {
			return zs
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
