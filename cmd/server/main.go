package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/config"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/dispatch"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/eligibility"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/geo"
	httpapi "github.com/idorenyinbassey/vip-ride-platform-sub001/internal/http"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/ingest"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/logging"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/match"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/offer"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/payments"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/storage"
	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/surge"
)

// driverIndex is everything the engine needs from one driver pool: radius
// queries, feed upserts, zone supply counts and the claim CAS.
type driverIndex interface {
	geo.Index
	offer.DriverPool
	surge.SupplyCounter
}

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var idx driverIndex
	if cfg.RedisAddr != "" {
		idx = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, cfg.DriverStaleAfter)
		logger.Info("driver index", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		idx = geo.NewMemoryIndex(cfg.DriverStaleAfter)
		logger.Info("driver index", "backend", "memory")
	}

	zones, err := loadZones(cfg.ZonesFile)
	if err != nil {
		log.Fatalf("zones: %v", err)
	}
	floors := surge.NewScheduledFloors()
	surgeManager := surge.NewManager(zones, idx, floors, surge.Config{
		DemandWindow:   cfg.SurgeDemandWindow,
		RecomputeEvery: cfg.SurgeRecomputeEvery,
		FreshFor:       cfg.SurgeFreshFor,
		MaxStepDown:    cfg.SurgeMaxStepDown,
	}, logger)
	go surgeManager.Run(ctx)

	var push *dispatch.PushDispatcher
	if cfg.PushEndpoint != "" {
		push = dispatch.NewPushDispatcher(cfg.PushEndpoint, cfg.PushKey)
	}
	gateway := dispatch.NewGateway(push, logger)

	offerManager := offer.NewManager(gateway, idx, offer.Config{
		TTL:           cfg.OfferTTL,
		NormalTierTTL: cfg.NormalTierOfferTTL,
		MaxAttempts:   cfg.MaxOfferAttempts,
		BatchSize:     cfg.OfferBatchSize,
		SweepEvery:    cfg.OfferSweepEvery,
	}, logger)
	go offerManager.Sweep(ctx)

	var (
		archive match.Archive
		trust   match.TrustStore
	)
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			migrate(cfg.PGDSN)
		}
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pg.Close()
		archive, trust = pg, pg
		logger.Info("archive", "backend", "postgres")
	} else {
		archive = storage.NewMemoryArchive()
		trust = storage.NewMemoryTrustStore()
		logger.Info("archive", "backend", "memory")
	}

	var prefs eligibility.PreferenceStore
	if cfg.RedisAddr != "" {
		prefs = storage.NewRedisPreferenceStore(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		prefs = storage.NewMemoryPreferenceStore()
	}

	var pay match.Preauthorizer
	if cfg.StripeAPIKey != "" {
		pay = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	coordinator := match.NewCoordinator(
		idx,
		geo.TierRadii{NormalKm: cfg.RadiusNormalKm, PremiumKm: cfg.RadiusPremiumKm, VIPKm: cfg.RadiusVIPKm},
		eligibility.New(prefs),
		surgeManager,
		trust,
		offerManager,
		archive,
		pay,
		match.FareConfig{MinimumFare: cfg.FareMinimum, PerKm: cfg.FarePerKm, Currency: cfg.FareCurrency},
		logger,
	)

	api := httpapi.NewServer(coordinator, idx, gateway, producer, floors, logger)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("ride engine listening", "addr", cfg.HTTPAddr, "zones", len(zones))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// loadZones reads the zone table from a JSON file; with no file configured
// the engine prices everything at the base multiplier.
func loadZones(path string) ([]models.SurgeZone, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var zones []models.SurgeZone
	if err := json.Unmarshal(b, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

func migrate(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	for _, name := range []string{"001_create_rides.sql", "002_create_trust_relationships.sql"} {
		b, err := os.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			log.Printf("migration read error: %v", err)
			continue
		}
		if _, err := db.Exec(string(b)); err != nil {
			log.Printf("migration exec error (%s): %v", name, err)
		} else {
			log.Printf("migration applied: %s", name)
		}
	}
}
