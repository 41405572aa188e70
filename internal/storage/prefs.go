package storage

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisPreferenceStore reads customer driver blocklists maintained by the
// account subsystem out of Redis sets.
type RedisPreferenceStore struct {
	client *redis.Client
}

func NewRedisPreferenceStore(addr, password string) *RedisPreferenceStore {
	return &RedisPreferenceStore{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func (s *RedisPreferenceStore) BlocklistFor(ctx context.Context, customerID string) (map[string]struct{}, error) {
	ids, err := s.client.SMembers(ctx, blocklistKey(customerID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Block adds a driver to a customer's blocklist.
func (s *RedisPreferenceStore) Block(ctx context.Context, customerID, driverID string) error {
	return s.client.SAdd(ctx, blocklistKey(customerID), driverID).Err()
}

func blocklistKey(customerID string) string { return "customer:blocklist:" + customerID }

// MemoryPreferenceStore is the zero-setup variant.
type MemoryPreferenceStore struct {
	mu      sync.RWMutex
	blocked map[string]map[string]struct{}
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{blocked: make(map[string]map[string]struct{})}
}

func (s *MemoryPreferenceStore) BlocklistFor(ctx context.Context, customerID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.blocked[customerID]
	out := make(map[string]struct{}, len(src))
	for id := range src {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *MemoryPreferenceStore) Block(ctx context.Context, customerID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked[customerID] == nil {
		s.blocked[customerID] = make(map[string]struct{})
	}
	s.blocked[customerID][driverID] = struct{}{}
	return nil
}
