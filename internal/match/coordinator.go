package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/eligibility"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/geo"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/observability"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/offer"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/scoring"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/surge"
)

var (
	// ErrNoEligibleDrivers means filtering emptied the candidate pool; not
	// retryable without changing the request or waiting for supply.
	ErrNoEligibleDrivers = errors.New("match: no eligible drivers")
	// ErrNoDriverAccepted re-exports the offer manager's exhaustion error;
	// retryable by the caller, typically with a widened radius.
	ErrNoDriverAccepted = offer.ErrNoDriverAccepted
	// ErrCanceled re-exports offer-level cancellation.
	ErrCanceled = offer.ErrCanceled
	// ErrStaleSurgeData re-exports the surge staleness condition; it fails
	// quotes but never blocks matches.
	ErrStaleSurgeData = surge.ErrStaleData
	// ErrInvalidRequest rejects malformed input before any state exists.
	ErrInvalidRequest = errors.New("match: invalid request")
)

// GeoQuerier is the slice of the geo index the coordinator needs.
type GeoQuerier interface {
	Query(center models.Coord, radiusKm float64) []models.DriverState
}

// Pricer is the surface of the surge manager the coordinator consumes.
type Pricer interface {
	MultiplierFor(p models.Coord, tier models.CustomerTier) (float64, error)
	RecordDemand(p models.Coord)
	Snapshot() []models.SurgeZone
}

// TrustStore looks up prior successful rides between a customer and driver.
type TrustStore interface {
	Lookup(ctx context.Context, customerID, driverID string) (int, error)
}

// Dispatcher runs the offer lifecycle for one ranked candidate list.
type Dispatcher interface {
	Dispatch(ctx context.Context, req models.RideRequest, ranked []models.ScoredDriver, multiplier float64) (offer.Result, error)
}

// Archive persists resolved rides for audit; failures are logged, never
// surfaced to the rider.
type Archive interface {
	SaveRide(ctx context.Context, r *models.Ride) error
}

// Preauthorizer places a hold on the customer's payment method once a driver
// accepts. Optional; capture happens elsewhere.
type Preauthorizer interface {
	Hold(ctx context.Context, amountMinor int64, currency, customerID string) (string, error)
}

// FareConfig prices the quote before surge.
type FareConfig struct {
	MinimumFare float64
	PerKm       float64
	Currency    string
}

func DefaultFareConfig() FareConfig {
	return FareConfig{MinimumFare: 2.5, PerKm: 1.2, Currency: "usd"}
}

// Coordinator sequences geo query, filtering, scoring and offer dispatch for
// each ride request. It holds no business rules of its own beyond ordering
// the calls and surfacing the first hard failure.
type Coordinator struct {
	geo      GeoQuerier
	radii    geo.TierRadii
	filter   *eligibility.Filter
	pricer   Pricer
	trust    TrustStore
	offers   Dispatcher
	archive  Archive
	payments Preauthorizer
	fares    FareConfig
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

func NewCoordinator(
	g GeoQuerier,
	radii geo.TierRadii,
	filter *eligibility.Filter,
	pricer Pricer,
	trust TrustStore,
	offers Dispatcher,
	archive Archive,
	payments Preauthorizer,
	fares FareConfig,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if fares == (FareConfig{}) {
		fares = DefaultFareConfig()
	}
	return &Coordinator{
		geo:      g,
		radii:    radii,
		filter:   filter,
		pricer:   pricer,
		trust:    trust,
		offers:   offers,
		archive:  archive,
		payments: payments,
		fares:    fares,
		logger:   logger,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Match finds, ranks and sequentially offers drivers for the request. It
// returns the winning assignment or one of the taxonomy errors. Many matches
// run concurrently; each owns its own offer queue.
func (c *Coordinator) Match(ctx context.Context, req models.RideRequest) (models.MatchResult, error) {
	start := time.Now()
	if err := validate(req); err != nil {
		observability.MatchesTotal.WithLabelValues("invalid").Inc()
		return models.MatchResult{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.track(req.ID, cancel)
	defer c.untrack(req.ID)

	c.pricer.RecordDemand(req.Pickup)

	radius := c.radii.For(req.CustomerTier)
	candidates := c.geo.Query(req.Pickup, radius)
	eligibleDrivers := c.filter.Apply(ctx, candidates, req)
	if len(eligibleDrivers) == 0 {
		observability.MatchesTotal.WithLabelValues("no_eligible_drivers").Inc()
		return models.MatchResult{}, ErrNoEligibleDrivers
	}

	multiplier, err := c.pricer.MultiplierFor(req.Pickup, req.CustomerTier)
	if err != nil {
		// Stale surge data degrades the match to the base multiplier
		// rather than blocking it.
		c.logger.Warn("surge degraded to base multiplier",
			"ride_request", req.ID, "error", err)
	}

	ranked := c.rank(ctx, req, eligibleDrivers, radius)

	res, err := c.offers.Dispatch(ctx, req, ranked, multiplier)
	latency := time.Since(start)
	switch {
	case err == nil:
		observability.MatchesTotal.WithLabelValues("matched").Inc()
		observability.MatchLatency.Observe(latency.Seconds())
		c.persist(req, res.Winner.DriverID, "matched", multiplier)
		c.preauthorize(ctx, req, multiplier)
		return models.MatchResult{
			RideRequestID:   req.ID,
			DriverID:        res.Winner.DriverID,
			FinalMultiplier: multiplier,
			Attempts:        res.Attempts,
		}, nil
	case errors.Is(err, offer.ErrCanceled):
		observability.MatchesTotal.WithLabelValues("canceled").Inc()
		c.persist(req, "", "canceled", multiplier)
		return models.MatchResult{}, err
	default:
		observability.MatchesTotal.WithLabelValues("no_driver_accepted").Inc()
		c.persist(req, "", "failed", multiplier)
		return models.MatchResult{}, err
	}
}

// Cancel aborts an in-flight match for the request, superseding its pending
// and queued offers. Reports whether a match was actually in flight.
func (c *Coordinator) Cancel(requestID string) bool {
	c.mu.Lock()
	cancel, ok := c.inFlight[requestID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Quote is a read-only pricing preview; no offer is created and no demand is
// recorded. Stale surge data makes the quote fail with ErrStaleSurgeData,
// still carrying the base-multiplier estimate for callers that choose to
// serve it degraded.
func (c *Coordinator) Quote(ctx context.Context, pickup, dest models.Coord, tier models.CustomerTier) (models.Quote, error) {
	if !validCoord(pickup) || !validCoord(dest) {
		return models.Quote{}, fmt.Errorf("%w: bad coordinates", ErrInvalidRequest)
	}
	if !tier.Valid() {
		return models.Quote{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, tier)
	}

	multiplier, err := c.pricer.MultiplierFor(pickup, tier)
	base := c.baseFare(pickup, dest)
	q := models.Quote{
		BaseFare:        base,
		SurgeMultiplier: multiplier,
		FinalEstimate:   base * multiplier,
	}
	if err != nil {
		q.Degraded = true
		observability.SurgeDegradedQuotes.Inc()
		c.logger.Warn("quote degraded", "error", err)
		return q, ErrStaleSurgeData
	}
	return q, nil
}

// SurgeSnapshot exposes the zone table for dashboards.
func (c *Coordinator) SurgeSnapshot() []models.SurgeZone {
	return c.pricer.Snapshot()
}

// rank scores every eligible driver and orders them best first, keeping a
// surviving preferred driver at the head of the queue.
func (c *Coordinator) rank(ctx context.Context, req models.RideRequest, eligibleDrivers []models.DriverState, radius float64) []models.ScoredDriver {
	ranked := make([]models.ScoredDriver, 0, len(eligibleDrivers))
	for _, d := range eligibleDrivers {
		trusted := 0
		if req.CustomerTier == models.TierVIP && c.trust != nil {
			if n, err := c.trust.Lookup(ctx, req.CustomerID, d.ID); err == nil {
				trusted = n
			}
		}
		ranked = append(ranked, scoring.Score(scoring.Inputs{
			Request:      req,
			Driver:       d,
			MaxRadiusKm:  radius,
			TrustedRides: trusted,
		}))
	}
	scoring.Rank(ranked)

	if req.PreferredDriverID != "" {
		for i, s := range ranked {
			if s.Driver.ID == req.PreferredDriverID && i > 0 {
				copy(ranked[1:i+1], ranked[:i])
				ranked[0] = s
				break
			}
		}
	}
	return ranked
}

func (c *Coordinator) persist(req models.RideRequest, driverID, status string, multiplier float64) {
	if c.archive == nil {
		return
	}
	now := time.Now()
	r := &models.Ride{
		ID:              req.ID,
		CustomerID:      req.CustomerID,
		DriverID:        driverID,
		Pickup:          req.Pickup,
		Destination:     req.Destination,
		Status:          status,
		SurgeMultiplier: multiplier,
		CreatedAt:       req.RequestedAt,
		UpdatedAt:       now,
	}
	// archival is best-effort; a storage hiccup must not undo a match
	if err := c.archive.SaveRide(context.Background(), r); err != nil {
		c.logger.Error("ride archive failed", "ride", req.ID, "error", err)
	}
}

func (c *Coordinator) preauthorize(ctx context.Context, req models.RideRequest, multiplier float64) {
	if c.payments == nil {
		return
	}
	fare := c.baseFare(req.Pickup, req.Destination) * multiplier
	amountMinor := int64(fare * 100)
	if _, err := c.payments.Hold(ctx, amountMinor, c.fares.Currency, req.CustomerID); err != nil {
		c.logger.Warn("fare pre-authorization failed",
			"ride_request", req.ID, "amount_minor", amountMinor, "error", err)
	}
}

func (c *Coordinator) baseFare(pickup, dest models.Coord) float64 {
	distKm := geo.HaversineKm(pickup, dest)
	fare := c.fares.MinimumFare + c.fares.PerKm*distKm
	if fare < c.fares.MinimumFare {
		fare = c.fares.MinimumFare
	}
	return fare
}

func (c *Coordinator) track(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	c.inFlight[id] = cancel
	c.mu.Unlock()
}

func (c *Coordinator) untrack(id string) {
	c.mu.Lock()
	cancel := c.inFlight[id]
	delete(c.inFlight, id)
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func validate(req models.RideRequest) error {
	if req.ID == "" || req.CustomerID == "" {
		return fmt.Errorf("%w: missing ids", ErrInvalidRequest)
	}
	if !req.CustomerTier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, req.CustomerTier)
	}
	if !validCoord(req.Pickup) || !validCoord(req.Destination) {
		return fmt.Errorf("%w: bad coordinates", ErrInvalidRequest)
	}
	if req.PassengerCount < 0 {
		return fmt.Errorf("%w: negative passenger count", ErrInvalidRequest)
	}
	return nil
}

func validCoord(c models.Coord) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
