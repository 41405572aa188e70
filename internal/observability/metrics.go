package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "matches_total", Help: "Match attempts by outcome"},
		[]string{"outcome"},
	)
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ride_engine", Name: "match_latency_seconds", Help: "End-to-end match latency",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	OffersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "offers_total", Help: "Ride offers by terminal status"},
		[]string{"status"},
	)
	OfferSweepExpirations = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "offer_sweep_expirations_total", Help: "Pending offers expired by the background sweep"},
	)
	SurgeRecomputesTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "surge_recomputes_total", Help: "Surge zone recomputations"},
	)
	SurgeDegradedQuotes = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "surge_degraded_quotes_total", Help: "Quotes served at base multiplier due to stale surge data"},
	)
	DriverLocationUpdates = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "driver_location_updates_total", Help: "Driver location reports ingested over HTTP"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_engine", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_engine",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
