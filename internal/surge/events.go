package surge

import (
	"sync"
	"time"
)

// ScheduledFloors is an EventFeed fed by operations: special events and
// time-of-day rules inject a floor multiplier for a zone over a bounded
// window. Expired windows are pruned lazily.
type ScheduledFloors struct {
	mu      sync.RWMutex
	windows map[string][]floorWindow
}

type floorWindow struct {
	floor float64
	from  time.Time
	until time.Time
}

func NewScheduledFloors() *ScheduledFloors {
	return &ScheduledFloors{windows: make(map[string][]floorWindow)}
}

// Add schedules a floor multiplier for the zone between from and until.
func (s *ScheduledFloors) Add(zoneID string, floor float64, from, until time.Time) {
	if floor <= 1.0 || !until.After(from) {
		return
	}
	s.mu.Lock()
	s.windows[zoneID] = append(s.windows[zoneID], floorWindow{floor: floor, from: from, until: until})
	s.mu.Unlock()
}

// FloorFor returns the highest active floor for the zone at the given time.
func (s *ScheduledFloors) FloorFor(zoneID string, at time.Time) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wins := s.windows[zoneID]
	keep := wins[:0]
	var best float64
	for _, w := range wins {
		if at.After(w.until) {
			continue // expired, drop
		}
		keep = append(keep, w)
		if !at.Before(w.from) && w.floor > best {
			best = w.floor
		}
	}
	s.windows[zoneID] = keep
	return best, best > 0
}
