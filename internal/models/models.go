package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CustomerTier is the service level of the rider requesting the trip.
type CustomerTier string

const (
	TierNormal  CustomerTier = "normal"
	TierPremium CustomerTier = "premium"
	TierVIP     CustomerTier = "vip"
)

func (t CustomerTier) Valid() bool {
	switch t {
	case TierNormal, TierPremium, TierVIP:
		return true
	}
	return false
}

// Rank orders customer tiers for comparison against driver subscriptions.
func (t CustomerTier) Rank() int {
	switch t {
	case TierPremium:
		return 1
	case TierVIP:
		return 2
	default:
		return 0
	}
}

// SubscriptionTier gates which customer tiers a driver may serve. A driver
// may serve any customer tier at or below their own subscription.
type SubscriptionTier string

const (
	SubscriptionBasic   SubscriptionTier = "basic"
	SubscriptionPremium SubscriptionTier = "premium"
	SubscriptionVIP     SubscriptionTier = "vip"
)

func (t SubscriptionTier) Rank() int {
	switch t {
	case SubscriptionPremium:
		return 1
	case SubscriptionVIP:
		return 2
	default:
		return 0
	}
}

// CanServe reports whether a driver with this subscription may be offered a
// ride from the given customer tier.
func (t SubscriptionTier) CanServe(c CustomerTier) bool {
	return t.Rank() >= c.Rank()
}

type VehicleType string

const (
	VehicleStandard VehicleType = "standard"
	VehiclePremium  VehicleType = "premium"
	VehicleLuxury   VehicleType = "luxury"
)

// SpecialRequirements are hard constraints attached to a ride request. On a
// DriverState the same struct describes what the vehicle provides.
type SpecialRequirements struct {
	BabySeat       bool `json:"baby_seat"`
	Wheelchair     bool `json:"wheelchair"`
	PremiumVehicle bool `json:"premium_vehicle"`
}

// RideRequest is immutable once created; only offer-lifecycle status
// transitions touch the request afterward.
type RideRequest struct {
	ID                string              `json:"id"`
	CustomerID        string              `json:"customer_id"`
	CustomerTier      CustomerTier        `json:"customer_tier"`
	Pickup            Coord               `json:"pickup"`
	Destination       Coord               `json:"destination"`
	RequestedAt       time.Time           `json:"requested_at"`
	Requirements      SpecialRequirements `json:"special_requirements"`
	PreferredDriverID string              `json:"preferred_driver_id,omitempty"`
	PassengerCount    int                 `json:"passenger_count"`
}

// DriverState is the latest snapshot from the driver-app location feed. The
// engine only reads it; mutation happens through the feed.
type DriverState struct {
	ID              string              `json:"id"`
	Location        Coord               `json:"location"`
	LocationUpdated time.Time           `json:"location_updated"`
	Available       bool                `json:"available"`
	Vehicle         VehicleType         `json:"vehicle_type"`
	Subscription    SubscriptionTier    `json:"subscription_tier"`
	CompletionRate  float64             `json:"completion_rate"` // 0..1
	Rating          float64             `json:"rating"`          // 0..5
	VehicleFeatures SpecialRequirements `json:"vehicle_features"`
	FleetID         string              `json:"fleet_id,omitempty"`
	FleetTier       int                 `json:"fleet_tier,omitempty"` // 0 none, 1..3
}

type OfferStatus string

const (
	OfferPending    OfferStatus = "pending"
	OfferAccepted   OfferStatus = "accepted"
	OfferRejected   OfferStatus = "rejected"
	OfferExpired    OfferStatus = "expired"
	OfferSuperseded OfferStatus = "superseded"
)

// Terminal reports whether no further transition is allowed out of s.
func (s OfferStatus) Terminal() bool { return s != OfferPending }

// RideOffer is a time-bounded proposal of one ride to one driver. Offers are
// created and resolved entirely within a single match invocation.
type RideOffer struct {
	ID              string      `json:"id"`
	RideRequestID   string      `json:"ride_request_id"`
	DriverID        string      `json:"driver_id"`
	SequenceIndex   int         `json:"sequence_index"`
	Status          OfferStatus `json:"status"`
	OfferedAt       time.Time   `json:"offered_at"`
	ExpiresAt       time.Time   `json:"expires_at"`
	DriverLocation  Coord       `json:"driver_snapshot_location"`
	SurgeMultiplier float64     `json:"surge_multiplier_at_offer"`
}

// SurgeZone is a geographic pricing zone with live demand/supply counters.
// The boundary is a bounding box; Contains is the only predicate the engine
// relies on.
type SurgeZone struct {
	ID                string    `json:"zone_id"`
	MinLat            float64   `json:"min_lat"`
	MinLon            float64   `json:"min_lon"`
	MaxLat            float64   `json:"max_lat"`
	MaxLon            float64   `json:"max_lon"`
	BaseMultiplier    float64   `json:"base_multiplier"`
	CurrentMultiplier float64   `json:"current_multiplier"`
	DemandCount       int64     `json:"demand_count"`
	SupplyCount       int64     `json:"supply_count"`
	LastRecomputedAt  time.Time `json:"last_recomputed_at"`
}

func (z SurgeZone) Contains(p Coord) bool {
	return p.Lat >= z.MinLat && p.Lat <= z.MaxLat && p.Lon >= z.MinLon && p.Lon <= z.MaxLon
}

// TrustRelationship records successful rides between a customer and a driver.
// Append-only; grown by ride completion events outside the engine.
type TrustRelationship struct {
	CustomerID string    `json:"customer_id"`
	DriverID   string    `json:"driver_id"`
	RideCount  int       `json:"successful_ride_count"`
	LastRideAt time.Time `json:"last_ride_at"`
}

// ScoreBreakdown exposes the weighted components behind a composite score so
// ranking decisions stay auditable.
type ScoreBreakdown struct {
	Distance     float64 `json:"distance"`
	TierMatch    float64 `json:"tier_match"`
	VehicleMatch float64 `json:"vehicle_match"`
	Rating       float64 `json:"rating"`
	Availability float64 `json:"availability"`
	TrustBonus   float64 `json:"trust_bonus"`
	FleetBonus   float64 `json:"fleet_bonus"`
}

type ScoredDriver struct {
	Driver     DriverState    `json:"driver"`
	Score      float64        `json:"score"`
	DistanceKm float64        `json:"distance_km"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}

// MatchResult is the successful outcome of one coordinator invocation.
type MatchResult struct {
	RideRequestID   string  `json:"ride_request_id"`
	DriverID        string  `json:"driver_id"`
	FinalMultiplier float64 `json:"final_multiplier"`
	Attempts        int     `json:"attempts"`
}

// Quote is a read-only pricing preview; no offer is created.
type Quote struct {
	BaseFare        float64 `json:"base_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	FinalEstimate   float64 `json:"final_estimate"`
	Degraded        bool    `json:"degraded,omitempty"`
}

// Ride is the archived record of a resolved match.
type Ride struct {
	ID              string
	CustomerID      string
	DriverID        string
	Pickup          Coord
	Destination     Coord
	Status          string // matched, failed, canceled
	SurgeMultiplier float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
