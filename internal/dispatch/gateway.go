package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/offer"
)

// ErrNoSession means the driver has no live WebSocket session and no push
// fallback is configured; the offer manager skips to the next candidate.
var ErrNoSession = errors.New("dispatch: driver has no session")

// OfferMessage is what the driver app receives.
type OfferMessage struct {
	Type            string       `json:"type"` // "offer" | "revoke"
	OfferID         string       `json:"offer_id"`
	RideRequestID   string       `json:"ride_request_id"`
	Pickup          models.Coord `json:"pickup,omitempty"`
	Destination     models.Coord `json:"destination,omitempty"`
	SurgeMultiplier float64      `json:"surge_multiplier,omitempty"`
	ExpiresAt       time.Time    `json:"expires_at,omitempty"`
}

// driverReply is what the driver app sends back.
type driverReply struct {
	OfferID  string `json:"offer_id"`
	Accepted bool   `json:"accepted"`
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Gateway delivers offers to drivers over their WebSocket session, falling
// back to an HTTP push provider, and routes accept/reject replies back to
// the waiting offer manager.
type Gateway struct {
	mu       sync.RWMutex
	sessions map[string]*session
	waiters  map[string]chan offer.Response // keyed by offer id
	push     *PushDispatcher
	logger   *slog.Logger
}

func NewGateway(push *PushDispatcher, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		sessions: make(map[string]*session),
		waiters:  make(map[string]chan offer.Response),
		push:     push,
		logger:   logger,
	}
}

// Add registers a driver connection and pumps its replies until it closes.
func (g *Gateway) Add(driverID string, conn *websocket.Conn) {
	s := &session{conn: conn}
	g.mu.Lock()
	g.sessions[driverID] = s
	g.mu.Unlock()

	go func() {
		defer g.Remove(driverID)
		for {
			var reply driverReply
			if err := conn.ReadJSON(&reply); err != nil {
				return
			}
			g.Resolve(reply.OfferID, reply.Accepted)
		}
	}()
}

func (g *Gateway) Remove(driverID string) {
	g.mu.Lock()
	s, ok := g.sessions[driverID]
	delete(g.sessions, driverID)
	g.mu.Unlock()
	if ok {
		_ = s.conn.Close()
	}
}

// Offer sends the offer to the driver and returns the channel its answer
// will arrive on. The channel never closes; the caller owns the timeout.
func (g *Gateway) Offer(ctx context.Context, driverID string, o models.RideOffer) (<-chan offer.Response, error) {
	msg := OfferMessage{
		Type:            "offer",
		OfferID:         o.ID,
		RideRequestID:   o.RideRequestID,
		SurgeMultiplier: o.SurgeMultiplier,
		ExpiresAt:       o.ExpiresAt,
	}

	g.mu.RLock()
	s, ok := g.sessions[driverID]
	g.mu.RUnlock()

	if !ok && g.push == nil {
		return nil, ErrNoSession
	}

	// The waiter goes in before the offer goes out so an answer arriving
	// mid-delivery (a push webhook can fire before Send returns) still
	// finds its channel.
	ch := make(chan offer.Response, 1)
	g.mu.Lock()
	g.waiters[o.ID] = ch
	g.mu.Unlock()

	var err error
	if ok {
		err = s.send(msg)
	} else {
		err = g.push.Send(ctx, driverID, msg)
	}
	if err != nil {
		g.mu.Lock()
		delete(g.waiters, o.ID)
		g.mu.Unlock()
		return nil, err
	}
	return ch, nil
}

// Resolve routes a driver's answer (from the WS read loop or the push
// provider's webhook) to whoever is waiting on that offer. Late answers to
// already-resolved offers are dropped here.
func (g *Gateway) Resolve(offerID string, accepted bool) {
	g.mu.Lock()
	ch, ok := g.waiters[offerID]
	if ok {
		delete(g.waiters, offerID)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- offer.Response{OfferID: offerID, Accepted: accepted}:
	default:
	}
}

// Revoke drops the waiter and tells the driver the ride is no longer
// available. Best effort.
func (g *Gateway) Revoke(driverID, offerID string) {
	g.mu.Lock()
	delete(g.waiters, offerID)
	s, ok := g.sessions[driverID]
	g.mu.Unlock()
	if ok {
		if err := s.send(OfferMessage{Type: "revoke", OfferID: offerID}); err != nil {
			g.logger.Debug("revoke send failed", "driver", driverID, "error", err)
		}
	}
}

// Connected reports whether the driver has a live session.
func (g *Gateway) Connected(driverID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sessions[driverID]
	return ok
}
