package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// RedisIndex implements Index on Redis GEO commands so several API instances
// can share one driver pool. Positions live in a GEO set; the rest of the
// driver snapshot lives in a hash per driver.
type RedisIndex struct {
	client     *redis.Client
	key        string
	staleAfter time.Duration
	ctx        context.Context
}

func NewRedisIndex(addr, password, key string, staleAfter time.Duration) *RedisIndex {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key, staleAfter: staleAfter, ctx: context.Background()}
}

func (r *RedisIndex) Upsert(d models.DriverState) {
	if d.LocationUpdated.IsZero() {
		d.LocationUpdated = time.Now()
	}
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{
		Longitude: d.Location.Lon,
		Latitude:  d.Location.Lat,
		Name:      d.ID,
	}).Result()
	_ = r.client.HSet(r.ctx, metaKey(d.ID), map[string]interface{}{
		"available":       strconv.FormatBool(d.Available),
		"vehicle":         string(d.Vehicle),
		"subscription":    string(d.Subscription),
		"rating":          strconv.FormatFloat(d.Rating, 'f', 2, 64),
		"completion_rate": strconv.FormatFloat(d.CompletionRate, 'f', 3, 64),
		"baby_seat":       strconv.FormatBool(d.VehicleFeatures.BabySeat),
		"wheelchair":      strconv.FormatBool(d.VehicleFeatures.Wheelchair),
		"fleet_id":        d.FleetID,
		"fleet_tier":      strconv.Itoa(d.FleetTier),
		"updated":         d.LocationUpdated.Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Query(center models.Coord, radiusKm float64) []models.DriverState {
	res, err := r.client.GeoSearchLocation(r.ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lon,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil
	}
	cutoff := time.Now().Add(-r.staleAfter)
	out := make([]models.DriverState, 0, len(res))
	for _, loc := range res {
		d, ok := r.hydrate(loc)
		if !ok {
			continue
		}
		if !d.Available || d.LocationUpdated.Before(cutoff) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (r *RedisIndex) hydrate(loc redis.GeoLocation) (models.DriverState, bool) {
	d := models.DriverState{ID: loc.Name}
	d.Location.Lat = loc.Latitude
	d.Location.Lon = loc.Longitude
	m, err := r.client.HGetAll(r.ctx, metaKey(loc.Name)).Result()
	if err != nil || len(m) == 0 {
		return d, false
	}
	d.Available = m["available"] == "true"
	d.Vehicle = models.VehicleType(m["vehicle"])
	d.Subscription = models.SubscriptionTier(m["subscription"])
	if f, err := strconv.ParseFloat(m["rating"], 64); err == nil {
		d.Rating = f
	}
	if f, err := strconv.ParseFloat(m["completion_rate"], 64); err == nil {
		d.CompletionRate = f
	}
	d.VehicleFeatures.BabySeat = m["baby_seat"] == "true"
	d.VehicleFeatures.Wheelchair = m["wheelchair"] == "true"
	d.FleetID = m["fleet_id"]
	if n, err := strconv.Atoi(m["fleet_tier"]); err == nil {
		d.FleetTier = n
	}
	if ts, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
		d.LocationUpdated = ts
	}
	return d, true
}

// AvailableIn counts available drivers inside the zone bounds so the surge
// manager can use a shared Redis pool as its supply side.
func (r *RedisIndex) AvailableIn(zone models.SurgeZone) int64 {
	// GEOSEARCH only does circles and boxes around a point; use the box
	// centered on the zone.
	center := models.Coord{Lat: (zone.MinLat + zone.MaxLat) / 2, Lon: (zone.MinLon + zone.MaxLon) / 2}
	widthKm := HaversineKm(models.Coord{Lat: center.Lat, Lon: zone.MinLon}, models.Coord{Lat: center.Lat, Lon: zone.MaxLon})
	heightKm := HaversineKm(models.Coord{Lat: zone.MinLat, Lon: center.Lon}, models.Coord{Lat: zone.MaxLat, Lon: center.Lon})
	res, err := r.client.GeoSearch(r.ctx, r.key, &redis.GeoSearchQuery{
		Longitude: center.Lon,
		Latitude:  center.Lat,
		BoxWidth:  widthKm,
		BoxHeight: heightKm,
		BoxUnit:   "km",
	}).Result()
	if err != nil {
		return 0
	}
	var n int64
	for _, id := range res {
		if r.Available(id) {
			n++
		}
	}
	return n
}

// Available reports whether the driver is free: marked available in its meta
// hash and not claimed by a concurrent match.
func (r *RedisIndex) Available(id string) bool {
	if v, err := r.client.Exists(r.ctx, claimKey(id)).Result(); err != nil || v > 0 {
		return false
	}
	v, err := r.client.HGet(r.ctx, metaKey(id), "available").Result()
	return err == nil && v == "true"
}

// TryClaim takes the driver with SET NX so exactly one of any number of
// concurrent matches wins. The claim expires on its own as a guard against a
// crashed claimant; completion or release clears it sooner.
func (r *RedisIndex) TryClaim(id string) bool {
	if !r.Available(id) {
		return false
	}
	ok, err := r.client.SetNX(r.ctx, claimKey(id), "1", 2*time.Hour).Result()
	if err != nil || !ok {
		return false
	}
	_ = r.client.HSet(r.ctx, metaKey(id), "available", "false").Err()
	return true
}

func (r *RedisIndex) Release(id string) {
	_ = r.client.Del(r.ctx, claimKey(id)).Err()
	_ = r.client.HSet(r.ctx, metaKey(id), "available", "true").Err()
}

func metaKey(id string) string { return "driver:meta:" + id }

func claimKey(id string) string { return "driver:claim:" + id }
