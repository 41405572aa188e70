package storage

import (
	"context"
	"sync"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// RideArchive persists resolved ride requests for audit and retry analysis.
type RideArchive interface {
	SaveRide(ctx context.Context, r *models.Ride) error
	UpdateRide(ctx context.Context, r *models.Ride) error
}

// MemoryArchive is the in-process fallback used when no DSN is configured.
type MemoryArchive struct {
	mu    sync.RWMutex
	rides map[string]*models.Ride
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{rides: make(map[string]*models.Ride)}
}

func (m *MemoryArchive) SaveRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = r
	return nil
}

func (m *MemoryArchive) UpdateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = r
	return nil
}

func (m *MemoryArchive) Get(id string) (*models.Ride, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	return r, ok
}
