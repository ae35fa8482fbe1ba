// Package store defines persistence for per-user game state. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing).
//
// The unit of persistence is the whole GameState record keyed by user id,
// with last-write-wins semantics. Corrupt persisted data is treated as
// absent, never surfaced as a hard failure.
package store

import (
	"context"
	"errors"

	"github.com/finquest/invest-engine/internal/model"
)

// ErrNotFound is returned when no state exists for a user.
var ErrNotFound = errors.New("store: state not found")

// Store is the persistence interface.
type Store interface {
	// Load returns the user's state, or ErrNotFound when absent or corrupt.
	Load(ctx context.Context, userID string) (*model.GameState, error)

	// Save overwrites the user's state. Last write wins.
	Save(ctx context.Context, userID string, state *model.GameState) error
}
