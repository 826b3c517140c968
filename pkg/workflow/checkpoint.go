package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Welshcorki/Genminute/pkg/logging"
)

// DefaultCheckpointTTL bounds how long an abandoned run stays resumable.
const DefaultCheckpointTTL = 7 * 24 * time.Hour

// CheckpointStore persists workflow state so a run can resume after a
// crash. Load returns (nil, nil) when no checkpoint exists.
type CheckpointStore interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context, runID string) (*State, error)
	Delete(ctx context.Context, runID string) error
}

// MemoryStore keeps checkpoints in process memory. The default when no
// Redis is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]State{}}
}

// Save stores the state under its run ID.
func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.RunID] = state
	return nil
}

// Load returns the stored state, or nil when absent.
func (m *MemoryStore) Load(_ context.Context, runID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[runID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Delete removes the stored state.
func (m *MemoryStore) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, runID)
	return nil
}

// RedisStore keeps checkpoints in Redis so runs survive process
// restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisStore creates a Redis-backed checkpoint store.
func NewRedisStore(client *redis.Client, logger logging.Logger) *RedisStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisStore{
		client: client,
		ttl:    DefaultCheckpointTTL,
		logger: logger.With(logging.F("component", "checkpoint_store")),
	}
}

func checkpointKey(runID string) string {
	return "genminute:workflow:" + runID
}

// Save stores the JSON-serialized state with the configured TTL.
func (r *RedisStore) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, checkpointKey(state.RunID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", state.RunID, err)
	}
	return nil
}

// Load returns the stored state, or nil when absent.
func (r *RedisStore) Load(ctx context.Context, runID string) (*State, error) {
	data, err := r.client.Get(ctx, checkpointKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", runID, err)
	}
	return &state, nil
}

// Delete removes the stored state.
func (r *RedisStore) Delete(ctx context.Context, runID string) error {
	if err := r.client.Del(ctx, checkpointKey(runID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", runID, err)
	}
	return nil
}
