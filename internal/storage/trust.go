package storage

import (
	"context"
	"sync"
	"time"

	"github.com/idorenyinbassey/vip-ride-platform-sub001/internal/models"
)

// MemoryTrustStore keeps trust relationships in process. Useful for local
// runs and as the seedable fake in tests.
type MemoryTrustStore struct {
	mu   sync.RWMutex
	rels map[string]models.TrustRelationship
}

func NewMemoryTrustStore() *MemoryTrustStore {
	return &MemoryTrustStore{rels: make(map[string]models.TrustRelationship)}
}

func (s *MemoryTrustStore) Lookup(ctx context.Context, customerID, driverID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rels[trustKey(customerID, driverID)].RideCount, nil
}

func (s *MemoryTrustStore) RecordCompletion(ctx context.Context, customerID, driverID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := trustKey(customerID, driverID)
	rel := s.rels[k]
	rel.CustomerID = customerID
	rel.DriverID = driverID
	rel.RideCount++
	rel.LastRideAt = at
	s.rels[k] = rel
	return nil
}

func trustKey(customerID, driverID string) string { return customerID + "/" + driverID }
