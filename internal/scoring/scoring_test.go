package scoring

import (
	"testing"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func vipRequest() models.RideRequest {
	return models.RideRequest{
		ID:           "r1",
		CustomerID:   "c1",
		CustomerTier: models.TierVIP,
		Pickup:       models.Coord{Lat: 0, Lon: 0},
		RequestedAt:  baseTime,
	}
}

func freshDriver(id string, lat float64) models.DriverState {
	return models.DriverState{
		ID:              id,
		Location:        models.Coord{Lat: lat, Lon: 0},
		LocationUpdated: baseTime.Add(-2 * time.Minute),
		Available:       true,
		Vehicle:         models.VehicleLuxury,
		Subscription:    models.SubscriptionVIP,
		CompletionRate:  0.97,
		Rating:          5.0,
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	in := Inputs{Request: vipRequest(), Driver: freshDriver("d1", 0.05), MaxRadiusKm: 50, TrustedRides: 4}
	first := Score(in)
	for i := 0; i < 10; i++ {
		again := Score(in)
		if again.Score != first.Score || again.Breakdown != first.Breakdown {
			t.Fatalf("score not deterministic: %v vs %v", again, first)
		}
	}
}

func TestCloserDriverScoresHigher(t *testing.T) {
	req := vipRequest()
	near := Score(Inputs{Request: req, Driver: freshDriver("near", 0.018), MaxRadiusKm: 50})
	far := Score(Inputs{Request: req, Driver: freshDriver("far", 0.072), MaxRadiusKm: 50})
	if near.Score <= far.Score {
		t.Fatalf("near %.4f should beat far %.4f", near.Score, far.Score)
	}
}

func TestExactTierMatchBeatsOvershoot(t *testing.T) {
	req := models.RideRequest{CustomerTier: models.TierPremium, RequestedAt: baseTime}
	exact := freshDriver("exact", 0.01)
	exact.Subscription = models.SubscriptionPremium
	over := freshDriver("over", 0.01)
	over.Subscription = models.SubscriptionVIP

	se := Score(Inputs{Request: req, Driver: exact, MaxRadiusKm: 30})
	so := Score(Inputs{Request: req, Driver: over, MaxRadiusKm: 30})
	if se.Breakdown.TierMatch != 1.0 {
		t.Fatalf("exact match tier score = %f", se.Breakdown.TierMatch)
	}
	if so.Breakdown.TierMatch != 0.8 {
		t.Fatalf("one-tier overshoot score = %f", so.Breakdown.TierMatch)
	}
}

func TestVehicleMatchComponents(t *testing.T) {
	req := vipRequest()
	req.Requirements = models.SpecialRequirements{BabySeat: true}

	d := freshDriver("d1", 0.01)
	d.VehicleFeatures.BabySeat = true
	got := Score(Inputs{Request: req, Driver: d, MaxRadiusKm: 50})
	// base 0.5 + 0.4 luxury-for-vip + 0.2 baby seat
	if diff := got.Breakdown.VehicleMatch - 1.1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("vehicle match = %f, want 1.1", got.Breakdown.VehicleMatch)
	}

	d.Vehicle = models.VehicleStandard
	d.VehicleFeatures.BabySeat = false
	got = Score(Inputs{Request: req, Driver: d, MaxRadiusKm: 50})
	if got.Breakdown.VehicleMatch != 0.5 {
		t.Fatalf("vehicle match = %f, want base 0.5", got.Breakdown.VehicleMatch)
	}
}

func TestAvailabilityTiers(t *testing.T) {
	req := vipRequest()

	d := freshDriver("d1", 0.01) // 2 min old, completion 0.97
	got := Score(Inputs{Request: req, Driver: d, MaxRadiusKm: 50})
	if got.Breakdown.Availability != 0.5 {
		t.Fatalf("availability = %f, want 0.5", got.Breakdown.Availability)
	}

	d.LocationUpdated = baseTime.Add(-10 * time.Minute)
	d.CompletionRate = 0.90
	got = Score(Inputs{Request: req, Driver: d, MaxRadiusKm: 50})
	if got.Breakdown.Availability != 0.3 {
		t.Fatalf("availability = %f, want 0.3", got.Breakdown.Availability)
	}
}

func TestTrustBonusVIPOnly(t *testing.T) {
	vip := vipRequest()
	d := freshDriver("d1", 0.01)

	cases := []struct {
		rides int
		want  float64
	}{
		{0, 0}, {1, 0.1}, {2, 0.1}, {3, 0.2}, {5, 0.2}, {6, 0.3}, {12, 0.3},
	}
	for _, c := range cases {
		got := Score(Inputs{Request: vip, Driver: d, MaxRadiusKm: 50, TrustedRides: c.rides})
		if got.Breakdown.TrustBonus != c.want {
			t.Fatalf("rides=%d trust bonus = %f, want %f", c.rides, got.Breakdown.TrustBonus, c.want)
		}
	}

	normal := vip
	normal.CustomerTier = models.TierNormal
	got := Score(Inputs{Request: normal, Driver: d, MaxRadiusKm: 50, TrustedRides: 10})
	if got.Breakdown.TrustBonus != 0 {
		t.Fatalf("trust bonus must be vip-only, got %f", got.Breakdown.TrustBonus)
	}
}

func TestRankTieBreaks(t *testing.T) {
	// Identical scores force the distance, rating, id chain.
	a := models.ScoredDriver{Score: 1.0, DistanceKm: 5, Driver: models.DriverState{ID: "a", Rating: 4.0}}
	b := models.ScoredDriver{Score: 1.0, DistanceKm: 2, Driver: models.DriverState{ID: "b", Rating: 4.0}}
	c := models.ScoredDriver{Score: 1.0, DistanceKm: 5, Driver: models.DriverState{ID: "c", Rating: 5.0}}
	d := models.ScoredDriver{Score: 2.0, DistanceKm: 9, Driver: models.DriverState{ID: "d", Rating: 1.0}}

	list := []models.ScoredDriver{a, b, c, d}
	Rank(list)

	wantOrder := []string{"d", "b", "c", "a"}
	for i, want := range wantOrder {
		if list[i].Driver.ID != want {
			t.Fatalf("position %d: got %s, want %s", i, list[i].Driver.ID, want)
		}
	}
}
