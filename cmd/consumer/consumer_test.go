package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// fakeSink implements LocationSink for tests
type fakeSink struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failMeta int // number of times to fail SetMeta before succeeding
	geoCalls int
	metaCall int
	lastMeta map[string]interface{}
}

func (f *fakeSink) GeoAdd(ctx context.Context, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeSink) SetMeta(ctx context.Context, id string, values map[string]interface{}) error {
	f.metaCall++
	if f.metaCall <= f.failMeta {
		return errors.New("hset fail")
	}
	f.lastMeta = values
	return nil
}

func testDriver() *models.DriverState {
	return &models.DriverState{
		ID:              "d1",
		Location:        models.Coord{Lat: 1, Lon: 2},
		Available:       true,
		Vehicle:         models.VehicleStandard,
		Subscription:    models.SubscriptionBasic,
		Rating:          4.5,
		LocationUpdated: time.Now(),
	}
}

func TestUpdateWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeSink{failGeo: 1, failMeta: 1}
	start := time.Now()
	if err := updateWithRetry(context.Background(), f, testDriver(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.metaCall < 2 {
		t.Fatalf("expected retries, got geo=%d meta=%d", f.geoCalls, f.metaCall)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeSink{failGeo: 5}
	if err := updateWithRetry(context.Background(), f, testDriver(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestUpdateWithRetry_MetaMatchesIndexSchema(t *testing.T) {
	f := &fakeSink{}
	if err := updateWithRetry(context.Background(), f, testDriver(), 1, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{"available", "vehicle", "subscription", "rating", "completion_rate", "updated"} {
		if _, ok := f.lastMeta[field]; !ok {
			t.Fatalf("meta missing field %q", field)
		}
	}
	if f.lastMeta["available"] != "true" {
		t.Fatalf("available = %v, want \"true\"", f.lastMeta["available"])
	}
}
