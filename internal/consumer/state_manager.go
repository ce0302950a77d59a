package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Nordur12/SmartAquaria/internal/config"
	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StateStore last-seen metric values per device.
// Get returns the zero state for unknown devices; Set replaces the whole entry.
// Entries never expire; Delete is only called on explicit deprovisioning.
type StateStore interface {
	Get(ctx context.Context, deviceID string) (models.DeviceState, error)
	Set(ctx context.Context, deviceID string, state models.DeviceState) error
	Delete(ctx context.Context, deviceID string) error
}

// MemoryStateStore process-local state; a restart clears all history
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.DeviceState
}

// NewMemoryStateStore creates an empty in-memory store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.DeviceState)}
}

// Get returns the stored state or the zero state
func (s *MemoryStateStore) Get(_ context.Context, deviceID string) (models.DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[deviceID], nil
}

// Set replaces the device's state
func (s *MemoryStateStore) Set(_ context.Context, deviceID string, state models.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[deviceID] = state
	return nil
}

// Delete forgets a device
func (s *MemoryStateStore) Delete(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, deviceID)
	return nil
}

// Len number of tracked devices
func (s *MemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// RedisStateStore device state as JSON in Redis, shared across restarts and replicas
type RedisStateStore struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *RedisStateStore {
	return &RedisStateStore{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetStateKey builds the state key for a device
func (s *RedisStateStore) GetStateKey(deviceID string) string {
	return s.config.Alarm.State.KeyPrefix + deviceID
}

// Get reads the device's state; a missing key is the zero state
func (s *RedisStateStore) Get(ctx context.Context, deviceID string) (models.DeviceState, error) {
	var state models.DeviceState

	val, err := s.redisClient.Get(ctx, s.GetStateKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return state, nil
		}
		return state, fmt.Errorf("failed to get state: %w", err)
	}

	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return models.DeviceState{}, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return state, nil
}

// Set writes the device's state without TTL
func (s *RedisStateStore) Set(ctx context.Context, deviceID string, state models.DeviceState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.GetStateKey(deviceID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}

	s.logger.Debug("Updated device state",
		zap.String("device_id", deviceID),
	)
	return nil
}

// Delete removes the device's state
func (s *RedisStateStore) Delete(ctx context.Context, deviceID string) error {
	if err := s.redisClient.Del(ctx, s.GetStateKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}
