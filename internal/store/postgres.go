package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finquest/invest-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Each user owns one JSONB row; an upsert gives last-write-wins semantics.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the state table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS game_states (
			user_id    TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (*model.GameState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM game_states WHERE user_id = $1`, userID).
		Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var state model.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt row: treat as absent and let the session reinitialize.
		slog.Warn("corrupt game state, treating as absent", "user", userID, "err", err)
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID string, state *model.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_states (user_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET state = EXCLUDED.state, updated_at = now()`,
		userID, data)
	return err
}
