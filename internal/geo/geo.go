package geo

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// Default search radii per customer tier, in kilometers.
const (
	RadiusNormalKm  = 20.0
	RadiusPremiumKm = 30.0
	RadiusVIPKm     = 50.0
)

// DefaultStaleAfter is how old a location update may be before the driver is
// excluded from queries entirely (not scored down).
const DefaultStaleAfter = 15 * time.Minute

// RadiusForTier returns the configured search radius for a customer tier.
type TierRadii struct {
	NormalKm  float64
	PremiumKm float64
	VIPKm     float64
}

func DefaultTierRadii() TierRadii {
	return TierRadii{NormalKm: RadiusNormalKm, PremiumKm: RadiusPremiumKm, VIPKm: RadiusVIPKm}
}

func (r TierRadii) For(tier models.CustomerTier) float64 {
	switch tier {
	case models.TierVIP:
		return r.VIPKm
	case models.TierPremium:
		return r.PremiumKm
	default:
		return r.NormalKm
	}
}

// Index is the minimal surface required by the coordinator and handlers.
type Index interface {
	// Query returns every available, non-stale driver within radiusKm of
	// center, nearest first. Read-only snapshot; no side effects.
	Query(center models.Coord, radiusKm float64) []models.DriverState
	Upsert(d models.DriverState)
}

// MemoryIndex keeps the driver pool in a mutex-guarded map and answers radius
// queries with a haversine scan. Fine up to tens of thousands of drivers per
// process; swap in RedisIndex beyond that.
type MemoryIndex struct {
	mu         sync.RWMutex
	drivers    map[string]models.DriverState
	staleAfter time.Duration
	now        func() time.Time
}

func NewMemoryIndex(staleAfter time.Duration) *MemoryIndex {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &MemoryIndex{
		drivers:    make(map[string]models.DriverState),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (g *MemoryIndex) Upsert(d models.DriverState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d.LocationUpdated.IsZero() {
		d.LocationUpdated = g.now()
	}
	g.drivers[d.ID] = d
}

// Get returns the latest snapshot for one driver.
func (g *MemoryIndex) Get(id string) (models.DriverState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.drivers[id]
	return d, ok
}

func (g *MemoryIndex) Query(center models.Coord, radiusKm float64) []models.DriverState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cutoff := g.now().Add(-g.staleAfter)
	type hit struct {
		d    models.DriverState
		dist float64
	}
	hits := make([]hit, 0, len(g.drivers))
	for _, d := range g.drivers {
		if !d.Available || d.LocationUpdated.Before(cutoff) {
			continue
		}
		dist := HaversineKm(center, d.Location)
		if dist > radiusKm {
			continue
		}
		hits = append(hits, hit{d, dist})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].d.ID < hits[j].d.ID
	})
	out := make([]models.DriverState, len(hits))
	for i, h := range hits {
		out[i] = h.d
	}
	return out
}

// Available reports whether the driver is known and currently free.
func (g *MemoryIndex) Available(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.drivers[id]
	return ok && d.Available
}

// TryClaim flips the driver's availability false if and only if it was true.
// This is the compare-and-set that makes offer acceptance exclusive: two
// coordinators can never both win the same driver.
func (g *MemoryIndex) TryClaim(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.drivers[id]
	if !ok || !d.Available {
		return false
	}
	d.Available = false
	g.drivers[id] = d
	return true
}

// Release makes a claimed driver available again, e.g. when the ride it was
// claimed for is canceled before pickup.
func (g *MemoryIndex) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.drivers[id]
	if !ok {
		return
	}
	d.Available = true
	g.drivers[id] = d
}

// AvailableIn counts available, non-stale drivers inside the zone bounds.
// Used by the surge manager as the supply side of the ratio.
func (g *MemoryIndex) AvailableIn(zone models.SurgeZone) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cutoff := g.now().Add(-g.staleAfter)
	var n int64
	for _, d := range g.drivers {
		if d.Available && !d.LocationUpdated.Before(cutoff) && zone.Contains(d.Location) {
			n++
		}
	}
	return n
}

// HaversineKm is the great-circle distance between two points in kilometers.
func HaversineKm(a, b models.Coord) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
