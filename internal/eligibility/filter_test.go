package eligibility

import (
	"context"
	"testing"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

type fakePrefs struct{ blocked map[string]struct{} }

func (f *fakePrefs) BlocklistFor(ctx context.Context, customerID string) (map[string]struct{}, error) {
	return f.blocked, nil
}

func driver(id string, sub models.SubscriptionTier, vehicle models.VehicleType) models.DriverState {
	return models.DriverState{
		ID:              id,
		Subscription:    sub,
		Vehicle:         vehicle,
		Available:       true,
		LocationUpdated: time.Now(),
	}
}

func TestBasicDriverNeverServesVIP(t *testing.T) {
	f := New(&fakePrefs{})
	req := models.RideRequest{CustomerID: "c1", CustomerTier: models.TierVIP}
	cands := []models.DriverState{
		driver("basic", models.SubscriptionBasic, models.VehicleLuxury),
		driver("vip", models.SubscriptionVIP, models.VehicleLuxury),
	}
	got := f.Apply(context.Background(), cands, req)
	if len(got) != 1 || got[0].ID != "vip" {
		t.Fatalf("expected only vip driver, got %v", got)
	}
}

func TestDriverMayServeLowerTiers(t *testing.T) {
	f := New(&fakePrefs{})
	req := models.RideRequest{CustomerID: "c1", CustomerTier: models.TierNormal}
	got := f.Apply(context.Background(), []models.DriverState{
		driver("vip", models.SubscriptionVIP, models.VehicleStandard),
	}, req)
	if len(got) != 1 {
		t.Fatalf("vip driver should serve normal tier, got %v", got)
	}
}

func TestPremiumVehicleRequirement(t *testing.T) {
	f := New(&fakePrefs{})
	req := models.RideRequest{
		CustomerID:   "c1",
		CustomerTier: models.TierNormal,
		Requirements: models.SpecialRequirements{PremiumVehicle: true},
	}
	got := f.Apply(context.Background(), []models.DriverState{
		driver("std", models.SubscriptionVIP, models.VehicleStandard),
		driver("lux", models.SubscriptionVIP, models.VehicleLuxury),
		driver("prem", models.SubscriptionVIP, models.VehiclePremium),
	}, req)
	if len(got) != 2 {
		t.Fatalf("expected premium and luxury only, got %v", got)
	}
	for _, d := range got {
		if d.Vehicle == models.VehicleStandard {
			t.Fatalf("standard vehicle passed premium filter")
		}
	}
}

func TestWheelchairExcludesAll(t *testing.T) {
	f := New(&fakePrefs{})
	req := models.RideRequest{
		CustomerID:   "c1",
		CustomerTier: models.TierNormal,
		Requirements: models.SpecialRequirements{Wheelchair: true},
	}
	got := f.Apply(context.Background(), []models.DriverState{
		driver("a", models.SubscriptionVIP, models.VehicleLuxury),
		driver("b", models.SubscriptionPremium, models.VehiclePremium),
	}, req)
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestBlocklistExcludes(t *testing.T) {
	f := New(&fakePrefs{blocked: map[string]struct{}{"bad": {}}})
	req := models.RideRequest{CustomerID: "c1", CustomerTier: models.TierNormal}
	got := f.Apply(context.Background(), []models.DriverState{
		driver("bad", models.SubscriptionVIP, models.VehicleStandard),
		driver("good", models.SubscriptionVIP, models.VehicleStandard),
	}, req)
	if len(got) != 1 || got[0].ID != "good" {
		t.Fatalf("expected blocklisted driver excluded, got %v", got)
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	f := New(&fakePrefs{})
	req := models.RideRequest{CustomerID: "c1", CustomerTier: models.TierNormal, PreferredDriverID: "fav"}
	got := f.Apply(context.Background(), []models.DriverState{
		driver("a", models.SubscriptionVIP, models.VehicleStandard),
		driver("b", models.SubscriptionVIP, models.VehicleStandard),
		driver("fav", models.SubscriptionVIP, models.VehicleStandard),
	}, req)
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "fav" {
		t.Fatalf("candidate order must be preserved, got %v", got)
	}
}

func TestPreferredDriverStillSubjectToFilters(t *testing.T) {
	f := New(&fakePrefs{})
	req := models.RideRequest{CustomerID: "c1", CustomerTier: models.TierVIP, PreferredDriverID: "fav"}
	got := f.Apply(context.Background(), []models.DriverState{
		driver("fav", models.SubscriptionBasic, models.VehicleStandard),
		driver("other", models.SubscriptionVIP, models.VehicleStandard),
	}, req)
	if len(got) != 1 || got[0].ID != "other" {
		t.Fatalf("ineligible preferred driver must not be forced in, got %v", got)
	}
}
