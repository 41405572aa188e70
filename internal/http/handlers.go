package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/dispatch"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/geo"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/ingest"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/match"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/observability"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/surge"
)

// Server is the thin HTTP surface over the matching engine. All business
// rules live behind the coordinator; handlers only translate transport.
type Server struct {
	coordinator *match.Coordinator
	geo         geo.Index
	gateway     *dispatch.Gateway
	producer    *ingest.KafkaProducer // nil when Kafka is not configured
	floors      *surge.ScheduledFloors
	logger      *slog.Logger
	router      *mux.Router
}

func NewServer(
	coordinator *match.Coordinator,
	geoIndex geo.Index,
	gateway *dispatch.Gateway,
	producer *ingest.KafkaProducer,
	floors *surge.ScheduledFloors,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coordinator: coordinator,
		geo:         geoIndex,
		gateway:     gateway,
		producer:    producer,
		floors:      floors,
		logger:      logger,
		router:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/rides/request", s.handleMatch).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/rides/{ride_id}/cancel", s.handleCancel).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/quote", s.handleQuote).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/surge", s.handleSurgeSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/surge/events", s.handleSurgeEvent).Methods(http.MethodPost)
	s.router.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods(http.MethodPost)
	s.router.HandleFunc("/internal/driver/responses", s.handleDriverResponse).Methods(http.MethodPost)
	s.router.HandleFunc("/ws/{driver_id}", s.handleWS)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.RideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "bad_payload", err.Error())
		return
	}
	if req.ID == "" {
		req.ID = newID()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}

	res, err := s.coordinator.Match(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, match.ErrInvalidRequest):
		httpError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, match.ErrNoEligibleDrivers):
		httpError(w, http.StatusServiceUnavailable, "no_eligible_drivers", "no drivers can serve this request")
	case errors.Is(err, match.ErrCanceled):
		httpError(w, http.StatusConflict, "canceled", "ride request was canceled")
	default:
		httpError(w, http.StatusServiceUnavailable, "no_driver_accepted", "no driver accepted; retry later")
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	if !s.coordinator.Cancel(rideID) {
		httpError(w, http.StatusNotFound, "not_in_flight", "no match in flight for this ride")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pickup, err1 := parseCoord(q.Get("pickup_lat"), q.Get("pickup_lon"))
	dest, err2 := parseCoord(q.Get("dest_lat"), q.Get("dest_lon"))
	if err1 != nil || err2 != nil {
		httpError(w, http.StatusBadRequest, "bad_coordinates", "pickup/dest coordinates required")
		return
	}
	tier := models.CustomerTier(q.Get("tier"))
	if tier == "" {
		tier = models.TierNormal
	}

	quote, err := s.coordinator.Quote(r.Context(), pickup, dest, tier)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, quote)
	case errors.Is(err, match.ErrInvalidRequest):
		httpError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, match.ErrStaleSurgeData):
		// serve the base-multiplier estimate, flagged as degraded
		writeJSON(w, http.StatusOK, quote)
	default:
		httpError(w, http.StatusInternalServerError, "quote_failed", err.Error())
	}
}

func (s *Server) handleSurgeSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.SurgeSnapshot())
}

func (s *Server) handleSurgeEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ZoneID string    `json:"zone_id"`
		Floor  float64   `json:"floor"`
		From   time.Time `json:"from"`
		Until  time.Time `json:"until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "bad_payload", err.Error())
		return
	}
	if s.floors == nil {
		httpError(w, http.StatusNotImplemented, "no_event_feed", "event floors not configured")
		return
	}
	s.floors.Add(body.ZoneID, body.Floor, body.From, body.Until)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.DriverState
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		httpError(w, http.StatusBadRequest, "bad_payload", err.Error())
		return
	}
	if d.ID == "" {
		httpError(w, http.StatusBadRequest, "missing_driver_id", "driver id required")
		return
	}
	if d.LocationUpdated.IsZero() {
		d.LocationUpdated = time.Now()
	}
	if s.producer != nil {
		if err := s.producer.PublishLocation(d); err != nil {
			s.logger.Warn("location publish failed", "driver", d.ID, "error", err)
		}
	}
	s.geo.Upsert(d)
	observability.DriverLocationUpdates.Inc()
	w.WriteHeader(http.StatusNoContent)
}

// handleDriverResponse is the webhook the push provider calls with a
// driver's answer when the driver has no live WebSocket session.
func (s *Server) handleDriverResponse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OfferID  string `json:"offer_id"`
		Accepted bool   `json:"accepted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "bad_payload", err.Error())
		return
	}
	s.gateway.Resolve(body.OfferID, body.Accepted)
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		httpError(w, http.StatusBadRequest, "upgrade_failed", err.Error())
		return
	}
	s.gateway.Add(driverID, conn)
}

func parseCoord(latStr, lonStr string) (models.Coord, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return models.Coord{}, err
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return models.Coord{}, err
	}
	return models.Coord{Lat: lat, Lon: lon}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
