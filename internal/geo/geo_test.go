package geo

import (
	"testing"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := HaversineKm(models.Coord{}, models.Coord{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Lagos Island to Ikeja is roughly 16 km.
	a := models.Coord{Lat: 6.4550, Lon: 3.3941}
	b := models.Coord{Lat: 6.6018, Lon: 3.3515}
	d := HaversineKm(a, b)
	if d < 15 || d > 18 {
		t.Fatalf("unexpected distance %f", d)
	}
}

func TestQueryRespectsRadius(t *testing.T) {
	idx := NewMemoryIndex(DefaultStaleAfter)
	now := time.Now()
	near := models.DriverState{ID: "near", Location: models.Coord{Lat: 0.01, Lon: 0}, Available: true, LocationUpdated: now}
	far := models.DriverState{ID: "far", Location: models.Coord{Lat: 1.0, Lon: 0}, Available: true, LocationUpdated: now}
	idx.Upsert(near)
	idx.Upsert(far)

	got := idx.Query(models.Coord{}, 20)
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("expected only near driver, got %v", got)
	}
	for _, d := range got {
		if HaversineKm(models.Coord{}, d.Location) > 20 {
			t.Fatalf("driver %s outside radius", d.ID)
		}
	}
}

func TestQueryExcludesUnavailableAndStale(t *testing.T) {
	idx := NewMemoryIndex(15 * time.Minute)
	now := time.Now()
	idx.Upsert(models.DriverState{ID: "ok", Location: models.Coord{Lat: 0.01, Lon: 0}, Available: true, LocationUpdated: now})
	idx.Upsert(models.DriverState{ID: "offline", Location: models.Coord{Lat: 0.01, Lon: 0}, Available: false, LocationUpdated: now})
	idx.Upsert(models.DriverState{ID: "stale", Location: models.Coord{Lat: 0.01, Lon: 0}, Available: true, LocationUpdated: now.Add(-16 * time.Minute)})

	got := idx.Query(models.Coord{}, 20)
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("expected only fresh available driver, got %v", got)
	}
}

func TestQueryNearestFirst(t *testing.T) {
	idx := NewMemoryIndex(DefaultStaleAfter)
	now := time.Now()
	idx.Upsert(models.DriverState{ID: "b-8km", Location: models.Coord{Lat: 0.072, Lon: 0}, Available: true, LocationUpdated: now})
	idx.Upsert(models.DriverState{ID: "a-2km", Location: models.Coord{Lat: 0.018, Lon: 0}, Available: true, LocationUpdated: now})
	idx.Upsert(models.DriverState{ID: "c-5km", Location: models.Coord{Lat: 0.045, Lon: 0}, Available: true, LocationUpdated: now})

	got := idx.Query(models.Coord{}, 20)
	if len(got) != 3 {
		t.Fatalf("expected 3 drivers, got %d", len(got))
	}
	if got[0].ID != "a-2km" || got[1].ID != "c-5km" || got[2].ID != "b-8km" {
		t.Fatalf("wrong order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestTierRadii(t *testing.T) {
	r := DefaultTierRadii()
	if r.For(models.TierNormal) != 20 || r.For(models.TierPremium) != 30 || r.For(models.TierVIP) != 50 {
		t.Fatalf("unexpected radii: %+v", r)
	}
}

func TestAvailableInZone(t *testing.T) {
	idx := NewMemoryIndex(DefaultStaleAfter)
	now := time.Now()
	idx.Upsert(models.DriverState{ID: "in", Location: models.Coord{Lat: 0.5, Lon: 0.5}, Available: true, LocationUpdated: now})
	idx.Upsert(models.DriverState{ID: "out", Location: models.Coord{Lat: 2.5, Lon: 2.5}, Available: true, LocationUpdated: now})

	zone := models.SurgeZone{ID: "z1", MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}
	if n := idx.AvailableIn(zone); n != 1 {
		t.Fatalf("expected 1 driver in zone, got %d", n)
	}
}
