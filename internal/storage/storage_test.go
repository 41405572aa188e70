package storage

import (
	"context"
	"testing"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

func TestMemoryTrustStore_LookupUnknownIsZero(t *testing.T) {
	s := NewMemoryTrustStore()
	n, err := s.Lookup(context.Background(), "cust-1", "drv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("unknown pair count = %d, want 0", n)
	}
}

func TestMemoryTrustStore_RecordCompletionIncrements(t *testing.T) {
	s := NewMemoryTrustStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.RecordCompletion(ctx, "cust-1", "drv-1", time.Now()); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.RecordCompletion(ctx, "cust-1", "drv-2", time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, _ := s.Lookup(ctx, "cust-1", "drv-1")
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	n, _ = s.Lookup(ctx, "cust-1", "drv-2")
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestMemoryPreferenceStore_Blocklist(t *testing.T) {
	s := NewMemoryPreferenceStore()
	ctx := context.Background()
	if err := s.Block(ctx, "cust-1", "drv-bad"); err != nil {
		t.Fatalf("block: %v", err)
	}

	bl, err := s.BlocklistFor(ctx, "cust-1")
	if err != nil {
		t.Fatalf("blocklist: %v", err)
	}
	if _, ok := bl["drv-bad"]; !ok {
		t.Fatalf("expected drv-bad in blocklist, got %v", bl)
	}

	other, err := s.BlocklistFor(ctx, "cust-2")
	if err != nil {
		t.Fatalf("blocklist: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("unrelated customer blocklist = %v, want empty", other)
	}
}

func TestMemoryArchive_SaveThenUpdate(t *testing.T) {
	a := NewMemoryArchive()
	ctx := context.Background()
	ride := &models.Ride{ID: "ride-1", CustomerID: "cust-1", Status: "matched", CreatedAt: time.Now()}
	if err := a.SaveRide(ctx, ride); err != nil {
		t.Fatalf("save: %v", err)
	}

	ride.Status = "canceled"
	if err := a.UpdateRide(ctx, ride); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok := a.Get("ride-1")
	if !ok {
		t.Fatal("ride not found after save")
	}
	if got.Status != "canceled" {
		t.Fatalf("status = %q, want canceled", got.Status)
	}
}
