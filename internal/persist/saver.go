// Package persist provides the debounced fire-and-forget saver: rapid
// successive mutations coalesce into a single store write after a quiescent
// window. Saves are never awaited by gameplay operations — a failure is
// logged, counted, and implicitly retried on the next mutation.
package persist

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/finquest/invest-engine/internal/metrics"
	"github.com/finquest/invest-engine/internal/model"
	"github.com/finquest/invest-engine/internal/store"
)

// DefaultWindow is the quiescent period before a scheduled save fires.
const DefaultWindow = time.Second

const saveTimeout = 5 * time.Second

// Saver coalesces save requests per user.
type Saver struct {
	store  store.Store
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
}

type pendingSave struct {
	state *model.GameState
	timer *time.Timer
}

// NewSaver creates a saver over the given store. A non-positive window
// falls back to DefaultWindow.
func NewSaver(st store.Store, window time.Duration) *Saver {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Saver{
		store:   st,
		window:  window,
		pending: make(map[string]*pendingSave),
	}
}

// Schedule queues a save of the user's state after the quiescent window,
// replacing any save already pending for that user. The state is snapshotted
// now; later in-memory mutations schedule their own saves.
func (s *Saver) Schedule(userID string, state *model.GameState) {
	snap, err := snapshot(state)
	if err != nil {
		slog.Error("state snapshot failed, save skipped", "user", userID, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[userID]; ok {
		p.state = snap
		p.timer.Reset(s.window)
		return
	}

	p := &pendingSave{state: snap}
	p.timer = time.AfterFunc(s.window, func() { s.fire(userID) })
	s.pending[userID] = p
}

// Flush saves all pending state immediately. Called on shutdown.
func (s *Saver) Flush(ctx context.Context) {
	s.mu.Lock()
	drained := s.pending
	s.pending = make(map[string]*pendingSave)
	s.mu.Unlock()

	for userID, p := range drained {
		p.timer.Stop()
		s.save(ctx, userID, p.state)
	}
}

func (s *Saver) fire(userID string) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	s.save(ctx, userID, p.state)
}

// save writes one state; failure is non-fatal and never blocks gameplay.
func (s *Saver) save(ctx context.Context, userID string, state *model.GameState) {
	if err := s.store.Save(ctx, userID, state); err != nil {
		metrics.SaveFailures.Inc()
		slog.Warn("state save failed, will retry on next mutation", "user", userID, "err", err)
		return
	}
	metrics.SavesTotal.Inc()
}

// snapshot deep-copies state so the timer goroutine never reads memory the
// session goroutine is still mutating.
func snapshot(state *model.GameState) (*model.GameState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var copied model.GameState
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, err
	}
	return &copied, nil
}
