package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/harun/ikigai/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps states in process memory. Entries are stored encoded so
// callers never share a SessionState with the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	sweeper *cron.Cron
}

func newMemoryStore(cfg *storeConfig) (*MemoryStore, error) {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     cfg.ttl,
		now:     cfg.now,
		logger:  cfg.logger.With().Str("component", "statestore").Logger(),
	}
	observability.EnsureRegistered()

	if cfg.sweepSpec != "" {
		s.sweeper = cron.New()
		if _, err := s.sweeper.AddFunc(cfg.sweepSpec, func() { s.Sweep() }); err != nil {
			return nil, fmt.Errorf("%w: sweep spec %q: %v", ErrInvalidConfig, cfg.sweepSpec, err)
		}
		s.sweeper.Start()
	}

	return s, nil
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, key string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if !now.Before(entry.expiresAt) {
		delete(s.entries, key)
		observability.SetActiveStates(len(s.entries))
		return nil, nil
	}

	var state SessionState
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}
	entry.expiresAt = now.Add(s.ttl)
	s.entries[key] = entry
	return &state, nil
}

// Put implements Store
func (s *MemoryStore) Put(ctx context.Context, key string, state *SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	observability.SetActiveStates(len(s.entries))
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	observability.SetActiveStates(len(s.entries))
	return nil
}

// Sweep evicts expired states and returns how many were removed
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	observability.SetActiveStates(len(s.entries))

	if removed > 0 {
		s.logger.Debug().Int("evicted", removed).Int("remaining", len(s.entries)).Msg("Swept expired interview states")
	}
	return removed
}

// Len returns the number of stored states, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweep and drops all states
func (s *MemoryStore) Close() error {
	if s.sweeper != nil {
		<-s.sweeper.Stop().Done()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	observability.SetActiveStates(0)
	return nil
}
