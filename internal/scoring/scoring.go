package scoring

import (
	"sort"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/geo"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// Component weights of the composite score. Bonuses are additive on top and
// uncapped, though in practice they stay at or below 0.3.
const (
	weightDistance     = 0.30
	weightTierMatch    = 0.25
	weightVehicleMatch = 0.20
	weightRating       = 0.15
	weightAvailability = 0.10
)

// Inputs is everything Score depends on. Recency is measured against the
// request's own timestamp so identical inputs always produce identical
// scores, clock be damned.
type Inputs struct {
	Request      models.RideRequest
	Driver       models.DriverState
	MaxRadiusKm  float64
	TrustedRides int // prior successful rides with this customer, VIP only
}

// Score computes the weighted composite score and its breakdown for one
// candidate. Pure function of its inputs; no hidden state.
func Score(in Inputs) models.ScoredDriver {
	distKm := geo.HaversineKm(in.Request.Pickup, in.Driver.Location)

	b := models.ScoreBreakdown{
		Distance:     distanceScore(distKm, in.MaxRadiusKm),
		TierMatch:    tierMatchScore(in.Driver.Subscription, in.Request.CustomerTier),
		VehicleMatch: vehicleMatchScore(in.Driver, in.Request),
		Rating:       in.Driver.Rating / 5.0,
		Availability: availabilityScore(in.Driver, in.Request),
		TrustBonus:   trustBonus(in.Request.CustomerTier, in.TrustedRides),
		FleetBonus:   fleetBonus(in.Driver.FleetTier),
	}

	score := weightDistance*b.Distance +
		weightTierMatch*b.TierMatch +
		weightVehicleMatch*b.VehicleMatch +
		weightRating*b.Rating +
		weightAvailability*b.Availability +
		b.TrustBonus + b.FleetBonus

	return models.ScoredDriver{
		Driver:     in.Driver,
		Score:      score,
		DistanceKm: distKm,
		Breakdown:  b,
	}
}

// Rank orders scored candidates best first: score descending, then distance
// ascending, then rating descending, then driver id for determinism.
func Rank(scored []models.ScoredDriver) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Driver.Rating != b.Driver.Rating {
			return a.Driver.Rating > b.Driver.Rating
		}
		return a.Driver.ID < b.Driver.ID
	})
}

// Linear falloff to zero at the search radius. Candidates beyond the radius
// never reach scoring, so this stays non-negative in practice.
func distanceScore(distKm, maxRadiusKm float64) float64 {
	if maxRadiusKm <= 0 {
		return 0
	}
	s := (maxRadiusKm - distKm) / maxRadiusKm
	if s < 0 {
		return 0
	}
	return s
}

// Exact subscription match scores full marks; each tier of overshoot costs
// 0.2. Insufficient subscriptions were excluded before scoring.
func tierMatchScore(sub models.SubscriptionTier, tier models.CustomerTier) float64 {
	over := sub.Rank() - tier.Rank()
	switch {
	case over <= 0:
		return 1.0
	case over == 1:
		return 0.8
	default:
		return 0.6
	}
}

func vehicleMatchScore(d models.DriverState, req models.RideRequest) float64 {
	s := 0.5
	premiumClass := d.Vehicle == models.VehiclePremium || d.Vehicle == models.VehicleLuxury
	switch req.CustomerTier {
	case models.TierVIP:
		if premiumClass {
			s += 0.4
		}
	case models.TierPremium:
		if premiumClass {
			s += 0.3
		}
	}
	if req.Requirements.BabySeat && d.VehicleFeatures.BabySeat {
		s += 0.2
	}
	if req.Requirements.Wheelchair && d.VehicleFeatures.Wheelchair {
		s += 0.2
	}
	return s
}

func availabilityScore(d models.DriverState, req models.RideRequest) float64 {
	var s float64
	age := req.RequestedAt.Sub(d.LocationUpdated)
	switch {
	case age <= 5*time.Minute:
		s += 0.3
	case age <= 15*time.Minute: // older drivers were excluded as stale
		s += 0.2
	}
	switch {
	case d.CompletionRate >= 0.95:
		s += 0.2
	case d.CompletionRate >= 0.85:
		s += 0.1
	}
	return s
}

// Trusted-driver bonus applies to VIP customers only.
func trustBonus(tier models.CustomerTier, rides int) float64 {
	if tier != models.TierVIP || rides <= 0 {
		return 0
	}
	switch {
	case rides >= 6:
		return 0.3
	case rides >= 3:
		return 0.2
	default:
		return 0.1
	}
}

func fleetBonus(fleetTier int) float64 {
	switch fleetTier {
	case 1:
		return 0.05
	case 2:
		return 0.10
	case 3:
		return 0.15
	default:
		return 0
	}
}
