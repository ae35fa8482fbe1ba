package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/finquest/invest-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing and
// development. Not suitable for production (no persistence).
//
// State is stored as marshaled JSON so that Load always hands back an
// independent copy — callers mutate their copy freely and persist via Save.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*model.GameState, error) {
	s.mu.RLock()
	data, ok := s.states[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var state model.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt data is treated as absent.
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, state *model.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.states[userID] = data
	s.mu.Unlock()
	return nil
}
