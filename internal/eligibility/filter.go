package eligibility

import (
	"context"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// PreferenceStore exposes the customer's driver blocklist. The store itself
// is owned by the account subsystem; the filter only reads it.
type PreferenceStore interface {
	BlocklistFor(ctx context.Context, customerID string) (map[string]struct{}, error)
}

// Filter applies the hard pass/fail rules between the geo query and scoring.
// Everything here is an exclusion, never a score adjustment.
type Filter struct {
	Prefs PreferenceStore
}

func New(prefs PreferenceStore) *Filter {
	return &Filter{Prefs: prefs}
}

// Apply narrows candidates for the request, preserving their order. The
// preferred driver gets no special treatment here; the coordinator moves it
// to the front after ranking. A blocklist read failure degrades to "no
// blocklist" rather than failing the whole match.
func (f *Filter) Apply(ctx context.Context, candidates []models.DriverState, req models.RideRequest) []models.DriverState {
	var blocked map[string]struct{}
	if f.Prefs != nil {
		if bl, err := f.Prefs.BlocklistFor(ctx, req.CustomerID); err == nil {
			blocked = bl
		}
	}

	out := make([]models.DriverState, 0, len(candidates))
	for _, d := range candidates {
		if !eligible(d, req, blocked) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func eligible(d models.DriverState, req models.RideRequest, blocked map[string]struct{}) bool {
	if !d.Subscription.CanServe(req.CustomerTier) {
		return false
	}
	if req.Requirements.PremiumVehicle && d.Vehicle == models.VehicleStandard {
		return false
	}
	if req.Requirements.BabySeat && !d.VehicleFeatures.BabySeat {
		return false
	}
	if req.Requirements.Wheelchair && !d.VehicleFeatures.Wheelchair {
		return false
	}
	if _, ok := blocked[d.ID]; ok {
		return false
	}
	return true
}
