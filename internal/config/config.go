package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the matching API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN         string
	RunMigrations bool

	StripeAPIKey string
	PushEndpoint string
	PushKey      string

	// geo
	DriverStaleAfter time.Duration
	RadiusNormalKm   float64
	RadiusPremiumKm  float64
	RadiusVIPKm      float64

	// offers
	OfferTTL           time.Duration
	NormalTierOfferTTL time.Duration
	MaxOfferAttempts   int
	OfferBatchSize     int
	OfferSweepEvery    time.Duration

	// surge
	SurgeDemandWindow   time.Duration
	SurgeRecomputeEvery time.Duration
	SurgeFreshFor       time.Duration
	SurgeMaxStepDown    float64
	ZonesFile           string

	// fares
	FareMinimum  float64
	FarePerKm    float64
	FareCurrency string

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		RedisGeoKey: "drivers_geo",
		KafkaTopic:  "driver-locations",

		DriverStaleAfter: 15 * time.Minute,
		RadiusNormalKm:   20,
		RadiusPremiumKm:  30,
		RadiusVIPKm:      50,

		OfferTTL:           120 * time.Second,
		NormalTierOfferTTL: 60 * time.Second,
		MaxOfferAttempts:   5,
		OfferBatchSize:     1,
		OfferSweepEvery:    5 * time.Second,

		SurgeDemandWindow:   30 * time.Minute,
		SurgeRecomputeEvery: 60 * time.Second,
		SurgeFreshFor:       90 * time.Second,
		SurgeMaxStepDown:    0.5,

		FareMinimum:  2.5,
		FarePerKm:    1.2,
		FareCurrency: "usd",

		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	setStringFromEnv(&cfg.PushEndpoint, "PUSH_ENDPOINT")
	cfg.PushKey = os.Getenv("PUSH_KEY")

	setDurationFromEnv(&cfg.DriverStaleAfter, "DRIVER_STALE_AFTER", &errs)
	setFloatFromEnv(&cfg.RadiusNormalKm, "RADIUS_NORMAL_KM", &errs)
	setFloatFromEnv(&cfg.RadiusPremiumKm, "RADIUS_PREMIUM_KM", &errs)
	setFloatFromEnv(&cfg.RadiusVIPKm, "RADIUS_VIP_KM", &errs)

	setDurationFromEnv(&cfg.OfferTTL, "OFFER_TTL", &errs)
	setDurationFromEnv(&cfg.NormalTierOfferTTL, "OFFER_TTL_NORMAL", &errs)
	setIntFromEnv(&cfg.MaxOfferAttempts, "OFFER_MAX_ATTEMPTS", &errs)
	setIntFromEnv(&cfg.OfferBatchSize, "OFFER_BATCH_SIZE", &errs)
	setDurationFromEnv(&cfg.OfferSweepEvery, "OFFER_SWEEP_EVERY", &errs)

	setDurationFromEnv(&cfg.SurgeDemandWindow, "SURGE_DEMAND_WINDOW", &errs)
	setDurationFromEnv(&cfg.SurgeRecomputeEvery, "SURGE_RECOMPUTE_EVERY", &errs)
	setDurationFromEnv(&cfg.SurgeFreshFor, "SURGE_FRESH_FOR", &errs)
	setFloatFromEnv(&cfg.SurgeMaxStepDown, "SURGE_MAX_STEP_DOWN", &errs)
	setStringFromEnv(&cfg.ZonesFile, "SURGE_ZONES_FILE")

	setFloatFromEnv(&cfg.FareMinimum, "FARE_MINIMUM", &errs)
	setFloatFromEnv(&cfg.FarePerKm, "FARE_PER_KM", &errs)
	setStringFromEnv(&cfg.FareCurrency, "FARE_CURRENCY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.MaxOfferAttempts <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_MAX_ATTEMPTS must be > 0"))
	}
	if cfg.OfferBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_BATCH_SIZE must be > 0"))
	}
	if cfg.RadiusNormalKm <= 0 || cfg.RadiusPremiumKm <= 0 || cfg.RadiusVIPKm <= 0 {
		errs = append(errs, fmt.Errorf("search radii must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
