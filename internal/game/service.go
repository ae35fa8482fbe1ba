// Package game provides the HTTP handlers and session logic binding the
// simulation together: the UI driver calls these to advance months, trade,
// open deposits, and re-render derived views.
//
// Per simulated user there is exactly one writer — the live session held in
// memory here. Persistence is opportunistic and debounced; a save failure
// never blocks or rolls back the in-memory mutation that triggered it.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/achievement"
	"github.com/finquest/invest-engine/internal/catalog"
	"github.com/finquest/invest-engine/internal/health"
	"github.com/finquest/invest-engine/internal/ledger"
	"github.com/finquest/invest-engine/internal/market"
	"github.com/finquest/invest-engine/internal/metrics"
	"github.com/finquest/invest-engine/internal/model"
	"github.com/finquest/invest-engine/internal/persist"
	"github.com/finquest/invest-engine/internal/store"
)

// Service handles game operations. Uses a mutex for serialized execution
// (single-instance); the simulation core assumes one writer per portfolio.
type Service struct {
	store           store.Store
	catalog         *catalog.Catalog
	market          *market.Engine
	ledger          *ledger.Ledger
	achievements    *achievement.Engine
	health          *health.Engine
	saver           *persist.Saver
	startingBalance decimal.Decimal

	mu       sync.Mutex
	sessions map[string]*model.GameState
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new game service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, cat *catalog.Catalog, saver *persist.Saver, hub *WSHub, startingBalance decimal.Decimal) *Service {
	l := ledger.New(cat)
	return &Service{
		store:           st,
		catalog:         cat,
		market:          market.NewEngine(cat),
		ledger:          l,
		achievements:    achievement.NewEngine(l),
		health:          health.NewEngine(cat, l),
		saver:           saver,
		startingBalance: startingBalance,
		sessions:        make(map[string]*model.GameState),
		wsHub:           hub,
	}
}

// --- Request/Response types ---

// CreateSessionRequest is the JSON body for session creation. Zero values
// fall back to service defaults.
type CreateSessionRequest struct {
	Income    decimal.Decimal `json:"income"`
	Balance   decimal.Decimal `json:"balance"`
	LifeStage string          `json:"life_stage"`
	Scenario  string          `json:"scenario"`
}

// AdvanceRequest selects the regime for one simulated month.
type AdvanceRequest struct {
	Regime string `json:"regime"`
}

// BuyRequest spends a cash amount on an asset.
type BuyRequest struct {
	AssetID string          `json:"asset_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// SellRequest disposes of units of a held asset.
type SellRequest struct {
	AssetID string          `json:"asset_id"`
	Units   decimal.Decimal `json:"units"`
}

// DepositRequest opens a fixed deposit.
type DepositRequest struct {
	TenureMonths int             `json:"tenure_months"`
	Amount       decimal.Decimal `json:"amount"`
}

// BudgetMonthRequest is the budget collaborator's completed-month record.
type BudgetMonthRequest struct {
	Needs      decimal.Decimal `json:"needs"`
	Wants      decimal.Decimal `json:"wants"`
	Savings    decimal.Decimal `json:"savings"`
	TotalSaved decimal.Decimal `json:"totalSaved"`
	XPEarned   int64           `json:"xpEarned"`
}

// SessionResponse returns the session state after create-or-load.
type SessionResponse struct {
	UserID  string           `json:"user_id"`
	Created bool             `json:"created"`
	State   *model.GameState `json:"state"`
}

// AdvanceResponse summarizes one simulated month.
type AdvanceResponse struct {
	Month   int                     `json:"month"`
	Regime  string                  `json:"regime"`
	Changes []market.AssetChange    `json:"changes"`
	Matured []ledger.MaturedDeposit `json:"matured"`
	Rewards []achievement.Reward    `json:"rewards"`
	Metrics ledger.Metrics          `json:"metrics"`
	XP      int64                   `json:"xp"`
	Level   int                     `json:"level"`
}

// TradeResponse wraps a ledger operation result with the re-rendered views.
type TradeResponse struct {
	Buy     *ledger.BuyResult    `json:"buy,omitempty"`
	Sell    *ledger.SellResult   `json:"sell,omitempty"`
	Deposit *model.Deposit       `json:"deposit,omitempty"`
	Rewards []achievement.Reward `json:"rewards"`
	Metrics ledger.Metrics       `json:"metrics"`
	XP      int64                `json:"xp"`
	Level   int                  `json:"level"`
}

// PortfolioResponse is the full derived portfolio view.
type PortfolioResponse struct {
	Portfolio *model.Portfolio `json:"portfolio"`
	Metrics   ledger.Metrics   `json:"metrics"`
	Level     int              `json:"level"`
}

// --- HTTP Handlers ---

// CreateSession handles POST /api/v1/users/{userID}/session
// Creates a fresh game state, or returns the existing one: the portfolio is
// created once per user, seeded with cash = profile balance, and the market
// is seeded with each asset's base price.
func (s *Service) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state := s.session(r, userID); state != nil {
		writeJSON(w, http.StatusOK, SessionResponse{UserID: userID, Created: false, State: state})
		return
	}

	balance := req.Balance
	if balance.LessThanOrEqual(decimal.Zero) {
		balance = s.startingBalance
	}
	scenario := req.Scenario
	if scenario == "" {
		scenario = model.RegimeFlat
	}
	lifeStage := req.LifeStage
	if lifeStage == "" {
		lifeStage = model.LifeStageAdult
	}

	state := &model.GameState{
		Profile: &model.Profile{
			Income:    req.Income,
			Balance:   balance,
			LifeStage: lifeStage,
			Budget:    model.Budget{Month: 1},
		},
		Portfolio: ledger.NewPortfolio(balance, scenario, 1),
		Market:    market.NewState(s.catalog),
	}
	s.sessions[userID] = state
	s.scheduleSave(userID, state)

	slog.Info("session created",
		"user", userID,
		"balance", balance.String(),
		"life_stage", lifeStage,
	)

	writeJSON(w, http.StatusCreated, SessionResponse{UserID: userID, Created: true, State: state})
}

// AdvanceMonth handles POST /api/v1/users/{userID}/advance
// One simulated month: reprice assets for the regime, settle maturing
// deposits, run achievement checks, persist opportunistically.
func (s *Service) AdvanceMonth(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}
	p := state.Portfolio
	month := state.Profile.Budget.Month

	changes, err := s.market.AdvanceMonth(state.Market, p, req.Regime)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.MarketScenario = req.Regime

	matured := s.ledger.ProcessMaturities(p, month)

	var rewards []achievement.Reward
	if len(matured) > 0 {
		rewards = append(rewards, s.achievements.OnDepositMatured(p)...)
	}
	rewards = append(rewards, s.achievements.OnMonthAdvance(p, month)...)
	countRewards(rewards)

	metrics.MonthsAdvanced.WithLabelValues(req.Regime).Inc()
	s.scheduleSave(userID, state)

	slog.Info("month advanced",
		"user", userID,
		"month", month,
		"regime", req.Regime,
		"repriced", len(changes),
		"matured", len(matured),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "month_advanced",
			UserID: userID,
			Regime: req.Regime,
			Month:  month,
		})
	}

	writeJSON(w, http.StatusOK, AdvanceResponse{
		Month:   month,
		Regime:  req.Regime,
		Changes: changes,
		Matured: matured,
		Rewards: rewards,
		Metrics: s.ledger.ComputeMetrics(p),
		XP:      p.XP,
		Level:   p.Level(),
	})
}

// Buy handles POST /api/v1/users/{userID}/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}
	p := state.Portfolio
	month := state.Profile.Budget.Month

	result, err := s.ledger.Buy(p, state.Market, req.AssetID, req.Amount, month)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	rewards := s.achievements.OnBuy(p)
	countRewards(rewards)
	metrics.TradesTotal.WithLabelValues(model.TxBuy).Inc()
	s.scheduleSave(userID, state)

	slog.Info("buy executed",
		"user", userID,
		"asset", req.AssetID,
		"amount", req.Amount.String(),
		"units", result.Units.String(),
		"fee", result.Fee.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    "trade_executed",
			UserID:  userID,
			AssetID: req.AssetID,
			Amount:  req.Amount.String(),
			Month:   month,
		})
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		Buy:     result,
		Rewards: rewards,
		Metrics: s.ledger.ComputeMetrics(p),
		XP:      p.XP,
		Level:   p.Level(),
	})
}

// Sell handles POST /api/v1/users/{userID}/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}
	p := state.Portfolio
	month := state.Profile.Budget.Month

	result, err := s.ledger.Sell(p, state.Market, req.AssetID, req.Units, month)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	var rewards []achievement.Reward
	if result.SameMonthLoss {
		rewards = append(rewards, s.achievements.OnSameMonthLoss(p))
	}
	countRewards(rewards)
	metrics.TradesTotal.WithLabelValues(model.TxSell).Inc()
	s.scheduleSave(userID, state)

	slog.Info("sell executed",
		"user", userID,
		"asset", req.AssetID,
		"units", result.Units.String(),
		"proceeds", result.Proceeds.String(),
		"realized_pnl", result.RealizedPnL.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    "trade_executed",
			UserID:  userID,
			AssetID: req.AssetID,
			Amount:  result.Proceeds.String(),
			Month:   month,
		})
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		Sell:    result,
		Rewards: rewards,
		Metrics: s.ledger.ComputeMetrics(p),
		XP:      p.XP,
		Level:   p.Level(),
	})
}

// OpenDeposit handles POST /api/v1/users/{userID}/deposit
func (s *Service) OpenDeposit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}
	p := state.Portfolio
	month := state.Profile.Budget.Month

	dep, err := s.ledger.OpenDeposit(p, req.TenureMonths, req.Amount, month)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	rewards := s.achievements.OnDepositOpen(p)
	countRewards(rewards)
	metrics.TradesTotal.WithLabelValues(model.TxDepositOpen).Inc()
	s.scheduleSave(userID, state)

	slog.Info("deposit opened",
		"user", userID,
		"principal", dep.Principal.String(),
		"tenure_months", dep.TenureMonths,
		"maturity_month", dep.MaturityMonth,
	)

	writeJSON(w, http.StatusOK, TradeResponse{
		Deposit: dep,
		Rewards: rewards,
		Metrics: s.ledger.ComputeMetrics(p),
		XP:      p.XP,
		Level:   p.Level(),
	})
}

// RecordBudgetMonth handles POST /api/v1/users/{userID}/budget/month
// The budget collaborator's boundary: appends one completed-month record
// and advances the simulated month. The invest core itself never writes
// budget history.
func (s *Service) RecordBudgetMonth(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req BudgetMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}
	budget := &state.Profile.Budget

	budget.MonthHistory = append(budget.MonthHistory, model.MonthRecord{
		Month:      budget.Month,
		Needs:      req.Needs,
		Wants:      req.Wants,
		Savings:    req.Savings,
		TotalSaved: req.TotalSaved,
		XPEarned:   req.XPEarned,
	})
	budget.Month++
	s.scheduleSave(userID, state)

	slog.Info("budget month recorded",
		"user", userID,
		"month", budget.Month-1,
		"total_saved", req.TotalSaved.String(),
	)

	writeJSON(w, http.StatusOK, budget)
}

// GetPortfolio handles GET /api/v1/users/{userID}/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, PortfolioResponse{
		Portfolio: state.Portfolio,
		Metrics:   s.ledger.ComputeMetrics(state.Portfolio),
		Level:     state.Portfolio.Level(),
	})
}

// GetHealth handles GET /api/v1/users/{userID}/health
func (s *Service) GetHealth(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.session(r, userID)
	if state == nil {
		writeError(w, "no session for user "+userID, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, s.health.Score(state.Profile, state.Portfolio))
}

// ListAssets handles GET /api/v1/assets
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.All())
}

// Flush persists every live session immediately, bypassing the debounce
// window. Called on shutdown.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, state := range s.sessions {
		if err := s.store.Save(ctx, userID, state); err != nil {
			slog.Warn("flush save failed", "user", userID, "err", err)
		}
	}
}

// --- helpers ---

// session returns the live state for a user, falling back to the store.
// Caller must hold s.mu. Returns nil when no state exists anywhere.
func (s *Service) session(r *http.Request, userID string) *model.GameState {
	if state, ok := s.sessions[userID]; ok {
		return state
	}
	state, err := s.store.Load(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("state load failed, treating as absent", "user", userID, "err", err)
		}
		return nil
	}
	s.sessions[userID] = state
	return state
}

func (s *Service) scheduleSave(userID string, state *model.GameState) {
	if s.saver != nil {
		s.saver.Schedule(userID, state)
	}
}

func countRewards(rewards []achievement.Reward) {
	for _, r := range rewards {
		metrics.XPGranted.WithLabelValues(r.Name).Inc()
	}
}

// writeLedgerError maps the ledger taxonomy onto HTTP statuses. These are
// ordinary declined actions, so the body is the same {"error": ...} shape
// used everywhere.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	reason := "declined"
	switch {
	case errors.Is(err, ledger.ErrInvalidAsset):
		status = http.StatusBadRequest
		reason = "invalid_asset"
	case errors.Is(err, ledger.ErrPositionNotFound):
		status = http.StatusNotFound
		reason = "position_not_found"
	case errors.Is(err, ledger.ErrBelowMinimum):
		reason = "below_minimum"
	case errors.Is(err, ledger.ErrInsufficientCash):
		reason = "insufficient_cash"
	case errors.Is(err, ledger.ErrExceedsHoldings):
		reason = "exceeds_holdings"
	}
	metrics.TradesRejected.WithLabelValues(reason).Inc()
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
