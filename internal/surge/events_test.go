package surge

import (
	"testing"
	"time"
)

func TestScheduledFloorActiveWindow(t *testing.T) {
	s := NewScheduledFloors()
	now := time.Now()
	s.Add("z1", 1.8, now.Add(-time.Hour), now.Add(time.Hour))

	if f, ok := s.FloorFor("z1", now); !ok || f != 1.8 {
		t.Fatalf("got %.2f/%v, want 1.8 active", f, ok)
	}
	if _, ok := s.FloorFor("z2", now); ok {
		t.Fatal("other zones must not inherit the floor")
	}
	if _, ok := s.FloorFor("z1", now.Add(2*time.Hour)); ok {
		t.Fatal("floor must expire with its window")
	}
}

func TestOverlappingFloorsTakeMax(t *testing.T) {
	s := NewScheduledFloors()
	now := time.Now()
	s.Add("z1", 1.5, now.Add(-time.Hour), now.Add(time.Hour))
	s.Add("z1", 2.2, now.Add(-time.Minute), now.Add(time.Minute))

	if f, _ := s.FloorFor("z1", now); f != 2.2 {
		t.Fatalf("got %.2f, want max overlap 2.2", f)
	}
}

func TestNonsenseWindowsIgnored(t *testing.T) {
	s := NewScheduledFloors()
	now := time.Now()
	s.Add("z1", 0.9, now, now.Add(time.Hour))  // below 1.0
	s.Add("z1", 1.5, now.Add(time.Hour), now)  // inverted
	if _, ok := s.FloorFor("z1", now.Add(time.Minute)); ok {
		t.Fatal("invalid windows must be rejected")
	}
}
