package offer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/observability"
)

var (
	// ErrNoDriverAccepted means every attempted offer resolved without an
	// acceptance. Retryable by the caller with widened parameters.
	ErrNoDriverAccepted = errors.New("offer: no driver accepted")
	// ErrCanceled means the ride request was canceled while offers were in
	// flight; all of them were superseded.
	ErrCanceled = errors.New("offer: ride request canceled")
)

// Response is a driver's answer to an offer.
type Response struct {
	OfferID  string
	Accepted bool
}

// Gateway abstracts offer delivery (push, SMS, WebSocket) and collects the
// driver's answer on the returned channel. The channel may never fire; the
// manager enforces the TTL. Revoke tells a driver a pending offer is gone.
type Gateway interface {
	Offer(ctx context.Context, driverID string, o models.RideOffer) (<-chan Response, error)
	Revoke(driverID string, offerID string)
}

// DriverPool is the shared availability state. TryClaim must be an atomic
// compare-and-set; it is the only critical section in the engine.
type DriverPool interface {
	Available(driverID string) bool
	TryClaim(driverID string) bool
	Release(driverID string)
}

type Config struct {
	TTL           time.Duration // offer lifetime, default 120s
	NormalTierTTL time.Duration // shorter lifetime for normal-tier rides, default 60s
	MaxAttempts   int           // sequential attempt cap, default 5
	BatchSize     int           // 1 = strictly sequential; >1 dispatches a bounded batch
	SweepEvery    time.Duration // background expiry sweep cadence, default 5s
}

func (c *Config) normalize() {
	if c.TTL <= 0 {
		c.TTL = 120 * time.Second
	}
	if c.NormalTierTTL <= 0 {
		c.NormalTierTTL = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 5 * time.Second
	}
}

// Manager runs the offer state machine for ride requests. Each request gets
// its own queue and goroutine-local state; the only shared mutable state is
// the driver pool and the offer registry the sweep reads.
type Manager struct {
	gateway Gateway
	pool    DriverPool
	cfg     Config
	logger  *slog.Logger

	mu     sync.Mutex
	offers map[string]*models.RideOffer // by offer id, live until terminal
	now    func() time.Time
}

func NewManager(gateway Gateway, pool DriverPool, cfg Config, logger *slog.Logger) *Manager {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		gateway: gateway,
		pool:    pool,
		cfg:     cfg,
		logger:  logger,
		offers:  make(map[string]*models.RideOffer),
		now:     time.Now,
	}
}

// Result carries the winning offer and how many offers were attempted.
type Result struct {
	Winner   models.RideOffer
	Attempts int
}

// Dispatch works through the ranked candidates until one accepts, the
// attempt limit is reached, or the queue runs dry. Candidates arrive highest
// score first and offers are resolved in that order; with a batch size above
// one the winner is still the highest-scored driver that accepted, not the
// fastest responder. Cancellation of ctx supersedes everything in flight.
func (m *Manager) Dispatch(ctx context.Context, req models.RideRequest, ranked []models.ScoredDriver, multiplier float64) (Result, error) {
	if m.cfg.BatchSize > 1 {
		return m.dispatchBatched(ctx, req, ranked, multiplier)
	}
	return m.dispatchSequential(ctx, req, ranked, multiplier)
}

func (m *Manager) dispatchSequential(ctx context.Context, req models.RideRequest, ranked []models.ScoredDriver, multiplier float64) (Result, error) {
	attempts := 0
	for _, cand := range ranked {
		if attempts >= m.cfg.MaxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts}, ErrCanceled
		}
		// A driver won by a concurrent match is skipped, not offered.
		if !m.pool.Available(cand.Driver.ID) {
			continue
		}

		o := m.newOffer(req, cand, attempts, multiplier)
		attempts++

		respCh, err := m.gateway.Offer(ctx, cand.Driver.ID, *o)
		if err != nil {
			m.transition(o, models.OfferExpired)
			m.logger.Warn("offer delivery failed",
				"ride_request", req.ID, "driver", cand.Driver.ID, "error", err)
			continue
		}

		ttl := time.NewTimer(o.ExpiresAt.Sub(m.now()))
		outcome := m.await(ctx, o, respCh, ttl)
		ttl.Stop()

		switch outcome {
		case models.OfferAccepted:
			if !m.pool.TryClaim(cand.Driver.ID) {
				// Race lost: another request won this driver between our
				// offer and their accept. Resolved silently.
				m.transition(o, models.OfferSuperseded)
				m.gateway.Revoke(cand.Driver.ID, o.ID)
				continue
			}
			m.transition(o, models.OfferAccepted)
			return Result{Winner: *o, Attempts: attempts}, nil
		case models.OfferSuperseded:
			m.transition(o, models.OfferSuperseded)
			m.gateway.Revoke(cand.Driver.ID, o.ID)
			return Result{Attempts: attempts}, ErrCanceled
		default:
			m.transition(o, outcome)
		}
	}
	return Result{Attempts: attempts}, ErrNoDriverAccepted
}

// await blocks until the driver answers, the TTL fires, or ctx is canceled.
// It returns the terminal status the offer should take; the caller applies
// the transition.
func (m *Manager) await(ctx context.Context, o *models.RideOffer, respCh <-chan Response, ttl *time.Timer) models.OfferStatus {
	for {
		select {
		case <-ctx.Done():
			return models.OfferSuperseded
		case <-ttl.C:
			return models.OfferExpired
		case resp, ok := <-respCh:
			if !ok {
				return models.OfferExpired
			}
			if resp.OfferID != o.ID {
				continue // answer to an older, already-resolved offer
			}
			if resp.Accepted {
				return models.OfferAccepted
			}
			return models.OfferRejected
		}
	}
}

type batchEntry struct {
	offer  *models.RideOffer
	driver string
	status models.OfferStatus // pending until resolved locally
	cancel context.CancelFunc
}

// dispatchBatched offers to up to BatchSize drivers at once. The award rule
// is still highest-scored-accepted: an accept from a lower-ranked driver is
// held until every higher-ranked in-flight offer has resolved.
func (m *Manager) dispatchBatched(ctx context.Context, req models.RideRequest, ranked []models.ScoredDriver, multiplier float64) (Result, error) {
	events := make(chan batchEvent, m.cfg.BatchSize*2)
	var entries []*batchEntry
	attempts := 0
	next := 0

	// Whatever the outcome, no offer leaves here non-terminal: everything
	// still pending in the registry (including an accept that lost to a
	// higher-ranked one) is superseded and its driver told.
	defer func() {
		for _, e := range entries {
			if m.transition(e.offer, models.OfferSuperseded) {
				e.cancel()
				m.gateway.Revoke(e.driver, e.offer.ID)
			}
		}
	}()

	fill := func() {
		for inFlight(entries) < m.cfg.BatchSize && next < len(ranked) && attempts < m.cfg.MaxAttempts {
			cand := ranked[next]
			next++
			if !m.pool.Available(cand.Driver.ID) {
				continue
			}
			o := m.newOffer(req, cand, attempts, multiplier)
			attempts++
			offerCtx, cancel := context.WithCancel(ctx)
			respCh, err := m.gateway.Offer(offerCtx, cand.Driver.ID, *o)
			if err != nil {
				cancel()
				m.transition(o, models.OfferExpired)
				continue
			}
			e := &batchEntry{offer: o, driver: cand.Driver.ID, status: models.OfferPending, cancel: cancel}
			entries = append(entries, e)
			go m.pump(offerCtx, e, respCh, events)
		}
	}

	fill()
	for inFlight(entries) > 0 {
		select {
		case <-ctx.Done():
			return Result{Attempts: attempts}, ErrCanceled
		case ev := <-events:
			ev.entry.status = ev.status
			ev.entry.cancel()
			if ev.status != models.OfferAccepted {
				m.transition(ev.entry.offer, ev.status)
			}
			// Award to the best-ranked accept once nothing above it can
			// still answer.
			if winner := awardable(entries); winner != nil {
				if !m.pool.TryClaim(winner.driver) {
					winner.status = models.OfferSuperseded
					m.transition(winner.offer, models.OfferSuperseded)
					m.gateway.Revoke(winner.driver, winner.offer.ID)
					fill()
					continue
				}
				m.transition(winner.offer, models.OfferAccepted)
				winner.status = models.OfferAccepted
				return Result{Winner: *winner.offer, Attempts: attempts}, nil
			}
			fill()
		}
	}
	return Result{Attempts: attempts}, ErrNoDriverAccepted
}

type batchEvent struct {
	entry  *batchEntry
	status models.OfferStatus
}

func (m *Manager) pump(ctx context.Context, e *batchEntry, respCh <-chan Response, events chan<- batchEvent) {
	ttl := time.NewTimer(e.offer.ExpiresAt.Sub(m.now()))
	defer ttl.Stop()
	status := m.await(ctx, e.offer, respCh, ttl)
	select {
	case events <- batchEvent{entry: e, status: status}:
	case <-ctx.Done():
	}
}

func inFlight(entries []*batchEntry) int {
	n := 0
	for _, e := range entries {
		if e.status == models.OfferPending {
			n++
		}
	}
	return n
}

// awardable returns the entry to accept: the first (highest-ranked) entry
// that accepted, provided no higher-ranked entry is still pending.
func awardable(entries []*batchEntry) *batchEntry {
	for _, e := range entries {
		switch e.status {
		case models.OfferPending:
			return nil
		case models.OfferAccepted:
			return e
		}
	}
	return nil
}

func (m *Manager) newOffer(req models.RideRequest, cand models.ScoredDriver, seq int, multiplier float64) *models.RideOffer {
	now := m.now()
	ttl := m.cfg.TTL
	if req.CustomerTier == models.TierNormal {
		ttl = m.cfg.NormalTierTTL
	}
	o := &models.RideOffer{
		ID:              newID(),
		RideRequestID:   req.ID,
		DriverID:        cand.Driver.ID,
		SequenceIndex:   seq,
		Status:          models.OfferPending,
		OfferedAt:       now,
		ExpiresAt:       now.Add(ttl),
		DriverLocation:  cand.Driver.Location,
		SurgeMultiplier: multiplier,
	}
	m.mu.Lock()
	m.offers[o.ID] = o
	m.mu.Unlock()
	return o
}

// transition moves an offer to a terminal state exactly once. Transitions
// out of a terminal state are refused, which keeps the lifecycle monotonic
// no matter how late a sweep or response arrives.
func (m *Manager) transition(o *models.RideOffer, to models.OfferStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Status != models.OfferPending || to == models.OfferPending {
		return false
	}
	o.Status = to
	delete(m.offers, o.ID)
	observability.OffersTotal.WithLabelValues(string(to)).Inc()
	return true
}

// Sweep expires any offer whose TTL passed without a response, so nothing
// stays pending forever even if a waiter died. Runs until ctx is done.
func (m *Manager) Sweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	now := m.now()
	m.mu.Lock()
	var overdue []*models.RideOffer
	for _, o := range m.offers {
		if o.Status == models.OfferPending && now.After(o.ExpiresAt) {
			overdue = append(overdue, o)
		}
	}
	m.mu.Unlock()
	for _, o := range overdue {
		if m.transition(o, models.OfferExpired) {
			observability.OfferSweepExpirations.Inc()
			m.logger.Info("swept expired offer", "offer", o.ID, "ride_request", o.RideRequestID)
		}
	}
}

// PendingOffers is a snapshot count for tests and health reporting.
func (m *Manager) PendingOffers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.offers)
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
