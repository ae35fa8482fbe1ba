package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finquest/invest-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Saves go to the primary store and refresh the cache; loads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Load(ctx context.Context, userID string) (*model.GameState, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, stateKey(userID)).Bytes()
	if err == nil {
		var state model.GameState
		if json.Unmarshal(data, &state) == nil {
			return &state, nil
		}
		// Corrupt cache entry: drop it and fall through to the primary.
		s.rdb.Del(ctx, stateKey(userID))
	}

	// Cache miss: read from primary.
	state, err := s.primary.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheState(ctx, userID, state)
	return state, nil
}

func (s *CachedStore) Save(ctx context.Context, userID string, state *model.GameState) error {
	if err := s.primary.Save(ctx, userID, state); err != nil {
		return err
	}
	s.cacheState(ctx, userID, state)
	return nil
}

func (s *CachedStore) cacheState(ctx context.Context, userID string, state *model.GameState) {
	if data, err := json.Marshal(state); err == nil {
		s.rdb.Set(ctx, stateKey(userID), data, s.ttl)
	}
}

func stateKey(userID string) string { return fmt.Sprintf("gamestate:%s", userID) }
