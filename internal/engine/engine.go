// Package engine orchestrates rounds, purchases, and cashouts over the
// ledger, daily limits, move history, opponent, and event log. It is
// the only component that mutates more than one collaborator per call.
//
// Mutating operations on one account are serialized by a per-account
// lock; operations on distinct accounts proceed independently. Each
// operation commits all of its state changes or none: any failure after
// the stake debit rolls the debit and the limit reservation back before
// the error is surfaced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RPS-Stake/rps-stake/internal/eventlog"
	"github.com/RPS-Stake/rps-stake/internal/ledger"
	"github.com/RPS-Stake/rps-stake/internal/limits"
	"github.com/RPS-Stake/rps-stake/internal/metrics"
	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/opponent"
	"github.com/RPS-Stake/rps-stake/internal/pricing"
	"github.com/RPS-Stake/rps-stake/internal/store"
)

var (
	// ErrSystemPaused rejects mutating operations while the global
	// pause flag is set. Checked before any other validation.
	ErrSystemPaused = errors.New("engine: system paused")

	// ErrUnverified is returned when the verification collaborator
	// denies the account.
	ErrUnverified = errors.New("engine: account not verified")

	// ErrInvalidAction is returned for a round input outside the three
	// legal actions.
	ErrInvalidAction = errors.New("engine: invalid round input")

	// ErrInvalidStake is returned for a non-positive stake.
	ErrInvalidStake = errors.New("engine: invalid stake")

	// ErrInvalidAmount is returned for a non-positive purchase or
	// cashout amount.
	ErrInvalidAmount = errors.New("engine: invalid amount")

	// ErrInvalidAccount is returned for an empty account id.
	ErrInvalidAccount = errors.New("engine: account id required")
)

// Verifier is the external identity/age verification collaborator,
// consumed as an opaque boolean capability.
type Verifier interface {
	IsVerified(ctx context.Context, accountID string) (bool, error)
}

// SelectFunc chooses the opponent action. The default is
// opponent.SelectAction; tests may inject a deterministic one.
type SelectFunc func(history []model.Action, difficulty opponent.Difficulty, stats opponent.WinRateStats, rng *rand.Rand) model.Action

// Config holds the administratively settable constants.
type Config struct {
	MaxDailyRounds  int            `json:"max_daily_rounds"`
	MaxDailyWager   int64          `json:"max_daily_wager"`
	WinMultiplierBP int64          `json:"win_multiplier_bp"` // basis points, 12500 = 125%
	TargetWinRate   float64        `json:"target_win_rate"`
	WinRateWindow   int            `json:"win_rate_window"`
	WinRateGain     float64        `json:"win_rate_gain"`
	WinRateScope    opponent.Scope `json:"win_rate_scope"`
	HistoryWindow   int            `json:"history_window"`
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{
		MaxDailyRounds:  10,
		MaxDailyWager:   1000,
		WinMultiplierBP: 12500,
		TargetWinRate:   0.75,
		WinRateWindow:   50,
		WinRateGain:     3.0,
		WinRateScope:    opponent.ScopeAccount,
		HistoryWindow:   10,
	}
}

// Validate rejects configurations that cannot be operated.
func (c Config) Validate() error {
	if c.MaxDailyRounds < 1 || c.MaxDailyWager < 1 {
		return fmt.Errorf("engine: daily limits must be positive")
	}
	if c.WinMultiplierBP < 10000 {
		return fmt.Errorf("engine: win multiplier must be at least 100%%")
	}
	if c.TargetWinRate <= 0 || c.TargetWinRate >= 1 {
		return fmt.Errorf("engine: target win rate must be in (0, 1)")
	}
	if c.WinRateWindow < 1 || c.WinRateGain <= 0 {
		return fmt.Errorf("engine: win rate window and gain must be positive")
	}
	if c.HistoryWindow < 4 || c.HistoryWindow > 32 {
		return fmt.Errorf("engine: history window must be in 4..32")
	}
	return nil
}

// Engine is the match settlement engine.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   Config

	paused atomic.Bool

	ledger   *ledger.Ledger
	pricing  *pricing.Adapter
	limits   *limits.Tracker
	history  *opponent.HistoryBook
	control  *opponent.Controller
	events   *eventlog.Log
	verifier Verifier
	st       store.Store
	hub      *WSHub

	now func() time.Time

	rngMu  sync.Mutex
	rng    *rand.Rand
	choose SelectFunc

	locks lockMap

	seqMu    sync.Mutex
	matchSeq map[string]uint64

	statsMu       sync.Mutex
	purchased     int64
	cashedOut     int64
	houseEarnings int64
	decided       int64
	oppWins       int64
}

// Option customizes engine construction.
type Option func(*Engine)

// WithNow injects the time source used for day keys and timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand injects the opponent's random source. The default is seeded
// from crypto/rand.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSelectFunc replaces the opponent move selector.
func WithSelectFunc(fn SelectFunc) Option {
	return func(e *Engine) { e.choose = fn }
}

// New wires the engine and its owned components over the given store,
// pricing adapter, and verification collaborator. hub may be nil.
func New(ctx context.Context, cfg Config, st store.Store, pr *pricing.Adapter, verifier Verifier, hub *WSHub, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	events, err := eventlog.New(ctx, st)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		ledger:   ledger.New(st),
		pricing:  pr,
		limits:   limits.New(cfg.MaxDailyRounds, cfg.MaxDailyWager),
		history:  opponent.NewHistoryBook(cfg.HistoryWindow),
		control:  opponent.NewController(cfg.TargetWinRate, cfg.WinRateWindow, cfg.WinRateGain, cfg.WinRateScope),
		events:   events,
		verifier: verifier,
		st:       st,
		hub:      hub,
		now:      time.Now,
		rng:      opponent.NewSecureRand(),
		choose:   opponent.SelectAction,
		matchSeq: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger.SetNow(e.now)

	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// restore reloads durable state after a restart: account balances,
// today's daily counters, and the per-account match sequence, so
// balances survive and Match.Seq stays monotonic across process
// lifetimes. The event log resumes its own sequence in eventlog.New.
func (e *Engine) restore(ctx context.Context) error {
	accounts, err := e.st.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("restore accounts: %w", err)
	}

	day := model.DayKey(e.now())
	for _, a := range accounts {
		e.ledger.Restore(a)

		matches, err := e.st.MatchesByAccount(ctx, a.ID, 1)
		if err != nil {
			return fmt.Errorf("restore match seq for %s: %w", a.ID, err)
		}
		if len(matches) > 0 {
			e.matchSeq[a.ID] = matches[0].Seq
		}

		counter, err := e.st.GetDailyCounter(ctx, a.ID, day)
		switch {
		case err == nil:
			e.limits.Prime(*counter)
		case errors.Is(err, store.ErrNotFound):
			// No rounds yet today.
		default:
			return fmt.Errorf("restore daily counter for %s: %w", a.ID, err)
		}
	}

	// Restored balances enter the books as prior purchases so the
	// reconciliation identity starts at zero for this process.
	total := e.ledger.TotalBalance()
	e.purchased = total

	if len(accounts) > 0 {
		slog.Info("state restored", "accounts", len(accounts), "total_balance", total)
	}
	return nil
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// --- Round settlement ---

// RoundRequest describes one round to settle.
type RoundRequest struct {
	AccountID  string
	Action     model.Action
	Stake      int64
	Difficulty opponent.Difficulty
}

// RoundResult is the resolved outcome returned to the caller.
type RoundResult struct {
	MatchID        string        `json:"match_id"`
	Outcome        model.Outcome `json:"outcome"`
	PlayerAction   model.Action  `json:"player_action"`
	OpponentAction model.Action  `json:"opponent_action"`
	Stake          int64         `json:"stake"`
	Payout         int64         `json:"payout"`
	NewBalance     int64         `json:"new_balance"`
	Seq            uint64        `json:"seq"`
}

// PlayRound validates, reserves, debits, resolves, and pays out one
// round. The debit through the event emission form one atomic unit: on
// any post-debit failure the stake is re-credited and the limit
// reservation released before the error is surfaced.
func (e *Engine) PlayRound(ctx context.Context, req RoundRequest) (*RoundResult, error) {
	start := time.Now()

	if e.paused.Load() {
		return nil, e.reject(ErrSystemPaused, "paused")
	}
	if req.AccountID == "" {
		return nil, e.reject(ErrInvalidAccount, "invalid_account")
	}
	if !req.Action.Valid() {
		return nil, e.reject(ErrInvalidAction, "invalid_action")
	}

	unlock := e.locks.acquire(req.AccountID)
	defer unlock()

	if req.Stake <= 0 {
		return nil, e.reject(ErrInvalidStake, "invalid_stake")
	}
	if req.Stake > e.ledger.Balance(req.AccountID) {
		return nil, e.reject(ledger.ErrInsufficientBalance, "insufficient_balance")
	}
	if err := e.checkVerified(ctx, req.AccountID); err != nil {
		return nil, err
	}

	now := e.now()
	reservation, err := e.limits.Reserve(req.AccountID, req.Stake, now)
	if err != nil {
		return nil, e.reject(err, "daily_limit")
	}

	// Last cancellation point: once the stake is debited the round runs
	// to resolution or internal rollback.
	if err := ctx.Err(); err != nil {
		reservation.Release()
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := e.ledger.Debit(ctx, req.AccountID, req.Stake, "round_stake"); err != nil {
		reservation.Release()
		return nil, err
	}

	rollback := func() {
		if _, rbErr := e.ledger.Credit(ctx, req.AccountID, req.Stake, "round_rollback"); rbErr != nil {
			slog.Error("round rollback failed", "account", req.AccountID, "err", rbErr)
		}
		reservation.Release()
	}

	oppAction := e.chooseAction(req.AccountID, req.Difficulty)
	outcome := model.Resolve(req.Action, oppAction)

	cfg := e.config()
	payout, err := roundPayout(outcome, req.Stake, cfg.WinMultiplierBP)
	if err != nil {
		rollback()
		return nil, err
	}

	if payout > 0 {
		if _, err := e.ledger.Credit(ctx, req.AccountID, payout, "round_payout"); err != nil {
			rollback()
			return nil, err
		}
	}

	seq := e.nextMatchSeq(req.AccountID)
	match := &model.Match{
		ID:             uuid.New().String(),
		AccountID:      req.AccountID,
		PlayerAction:   req.Action,
		OpponentAction: oppAction,
		Outcome:        outcome,
		Stake:          req.Stake,
		Payout:         payout,
		Seq:            seq,
		Timestamp:      now.UTC(),
	}

	if err := e.st.InsertMatch(ctx, match); err != nil {
		if payout > 0 {
			if _, rbErr := e.ledger.Debit(ctx, req.AccountID, payout, "round_reversal"); rbErr != nil {
				slog.Error("payout reversal failed", "account", req.AccountID, "err", rbErr)
			}
		}
		rollback()
		e.undoMatchSeq(req.AccountID)
		return nil, fmt.Errorf("record match: %w", err)
	}

	// Committed: everything below is post-commit bookkeeping.
	e.history.Record(req.AccountID, req.Action)
	if outcome != model.OutcomeTie {
		e.control.RecordDecided(req.AccountID, outcome == model.OutcomeLose)
	}
	e.ledger.MarkDay(req.AccountID, model.DayKey(now))

	counter := e.limits.Counter(req.AccountID, now)
	if err := e.st.SaveDailyCounter(ctx, &counter); err != nil {
		slog.Warn("daily counter snapshot failed", "account", req.AccountID, "err", err)
	}

	e.recordRound(req.Stake, payout, outcome)

	entry, err := e.events.Append(ctx, req.AccountID, model.EventRound, match.ID, match, now)
	if err != nil {
		slog.Error("event emission failed", "match", match.ID, "err", err)
	} else if e.hub != nil {
		e.hub.BroadcastEntry(*entry)
	}

	balance := e.ledger.Balance(req.AccountID)

	metrics.RoundsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.StakeVolume.Add(float64(req.Stake))
	metrics.RoundLatency.Observe(time.Since(start).Seconds())

	slog.Info("round settled",
		"account", req.AccountID,
		"match", match.ID,
		"player", req.Action,
		"opponent", oppAction,
		"outcome", outcome,
		"stake", req.Stake,
		"payout", payout,
		"balance", balance,
	)

	return &RoundResult{
		MatchID:        match.ID,
		Outcome:        outcome,
		PlayerAction:   req.Action,
		OpponentAction: oppAction,
		Stake:          req.Stake,
		Payout:         payout,
		NewBalance:     balance,
		Seq:            seq,
	}, nil
}

// roundPayout computes the integer payout: win pays stake scaled by the
// multiplier rounded down, tie refunds the stake, loss pays nothing.
func roundPayout(outcome model.Outcome, stake, multiplierBP int64) (int64, error) {
	switch outcome {
	case model.OutcomeWin:
		if stake > math.MaxInt64/multiplierBP {
			return 0, &ledger.FatalError{Op: "payout", Detail: fmt.Sprintf("stake %d overflows multiplier", stake)}
		}
		return stake * multiplierBP / 10000, nil
	case model.OutcomeTie:
		return stake, nil
	default:
		return 0, nil
	}
}

// chooseAction queries the opponent with the account's history,
// difficulty, and running win-rate statistics. The shared random source
// is serialized; selection itself is pure.
func (e *Engine) chooseAction(accountID string, difficulty opponent.Difficulty) model.Action {
	history := e.history.Moves(accountID)
	stats := e.control.Stats(accountID)

	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.choose(history, difficulty, stats, e.rng)
}

// --- Purchase / cashout ---

// PurchaseRequest buys credits with an external asset.
type PurchaseRequest struct {
	AccountID string
	AssetID   string
	Credits   int64
}

// ExchangeResult describes a settled purchase or cashout.
type ExchangeResult struct {
	RefID       string          `json:"ref_id"`
	AccountID   string          `json:"account_id"`
	AssetID     string          `json:"asset_id"`
	Credits     int64           `json:"credits"`
	AssetAmount decimal.Decimal `json:"asset_amount"`
	NewBalance  int64           `json:"new_balance"`
}

// Purchase converts an asset payment into credits. The oracle quote is
// taken before the account lock so a slow feed never holds the
// account's exclusive section open.
func (e *Engine) Purchase(ctx context.Context, req PurchaseRequest) (*ExchangeResult, error) {
	if e.paused.Load() {
		return nil, e.reject(ErrSystemPaused, "paused")
	}
	if req.AccountID == "" {
		return nil, e.reject(ErrInvalidAccount, "invalid_account")
	}
	if req.Credits <= 0 {
		return nil, e.reject(ErrInvalidAmount, "invalid_amount")
	}
	if err := e.checkVerified(ctx, req.AccountID); err != nil {
		return nil, err
	}
	if err := e.pricing.CheckPurchaseBounds(req.AssetID, req.Credits); err != nil {
		return nil, e.reject(err, "purchase_bounds")
	}

	// The buyer pays the asset leg: round up.
	assetAmount, err := e.pricing.CreditsToAssetAmount(ctx, req.AssetID, req.Credits, pricing.RoundCharge)
	if err != nil {
		return nil, e.oracleReject(err)
	}

	unlock := e.locks.acquire(req.AccountID)
	defer unlock()

	balance, err := e.ledger.Credit(ctx, req.AccountID, req.Credits, "purchase")
	if err != nil {
		return nil, err
	}

	e.statsMu.Lock()
	e.purchased += req.Credits
	e.statsMu.Unlock()

	refID := uuid.New().String()
	result := &ExchangeResult{
		RefID:       refID,
		AccountID:   req.AccountID,
		AssetID:     req.AssetID,
		Credits:     req.Credits,
		AssetAmount: assetAmount,
		NewBalance:  balance,
	}

	e.emit(ctx, req.AccountID, model.EventPurchase, refID, result)

	slog.Info("purchase settled",
		"account", req.AccountID,
		"asset", req.AssetID,
		"credits", req.Credits,
		"asset_amount", assetAmount.String(),
		"balance", balance,
	)
	return result, nil
}

// CashoutRequest converts credits back into an external asset.
type CashoutRequest struct {
	AccountID string
	AssetID   string
	Credits   int64
}

// Cashout debits credits and reports the asset amount payable. The
// asset leg is rounded down: the platform never pays out more than the
// credits are worth.
func (e *Engine) Cashout(ctx context.Context, req CashoutRequest) (*ExchangeResult, error) {
	if e.paused.Load() {
		return nil, e.reject(ErrSystemPaused, "paused")
	}
	if req.AccountID == "" {
		return nil, e.reject(ErrInvalidAccount, "invalid_account")
	}
	if req.Credits <= 0 {
		return nil, e.reject(ErrInvalidAmount, "invalid_amount")
	}
	if err := e.checkVerified(ctx, req.AccountID); err != nil {
		return nil, err
	}

	assetAmount, err := e.pricing.CreditsToAssetAmount(ctx, req.AssetID, req.Credits, pricing.RoundPayable)
	if err != nil {
		return nil, e.oracleReject(err)
	}

	unlock := e.locks.acquire(req.AccountID)
	defer unlock()

	balance, err := e.ledger.Debit(ctx, req.AccountID, req.Credits, "cashout")
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return nil, e.reject(err, "insufficient_balance")
		}
		return nil, err
	}

	e.statsMu.Lock()
	e.cashedOut += req.Credits
	e.statsMu.Unlock()

	refID := uuid.New().String()
	result := &ExchangeResult{
		RefID:       refID,
		AccountID:   req.AccountID,
		AssetID:     req.AssetID,
		Credits:     req.Credits,
		AssetAmount: assetAmount,
		NewBalance:  balance,
	}

	e.emit(ctx, req.AccountID, model.EventCashout, refID, result)

	slog.Info("cashout settled",
		"account", req.AccountID,
		"asset", req.AssetID,
		"credits", req.Credits,
		"asset_amount", assetAmount.String(),
		"balance", balance,
	)
	return result, nil
}

// --- Queries (available while paused) ---

// BalanceOf returns the current credit balance.
func (e *Engine) BalanceOf(accountID string) int64 {
	return e.ledger.Balance(accountID)
}

// MatchHistory returns up to limit matches, newest first.
func (e *Engine) MatchHistory(ctx context.Context, accountID string, limit int) ([]model.Match, error) {
	return e.st.MatchesByAccount(ctx, accountID, limit)
}

// AuditTrail returns the ledger audit trail for an account.
func (e *Engine) AuditTrail(ctx context.Context, accountID string) ([]model.AuditEntry, error) {
	return e.ledger.AuditTrail(ctx, accountID)
}

// EventsSince returns ordered event log entries after seq.
func (e *Engine) EventsSince(ctx context.Context, seq uint64, limit int) ([]model.EventLogEntry, error) {
	return e.events.Since(ctx, seq, limit)
}

// DailyCounter returns the account's counter for the day containing now.
func (e *Engine) DailyCounter(accountID string) model.DailyCounter {
	return e.limits.Counter(accountID, e.now())
}

// --- Admin operations ---

// SetPaused sets or clears the global pause flag. Queries remain
// available while paused.
func (e *Engine) SetPaused(paused bool) {
	e.paused.Store(paused)
	slog.Info("pause flag changed", "paused", paused)
}

// Paused reports the pause flag.
func (e *Engine) Paused() bool { return e.paused.Load() }

// UpdateConfig replaces the runtime configuration and applies it to the
// owned components.
func (e *Engine) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.limits.SetLimits(cfg.MaxDailyRounds, cfg.MaxDailyWager)
	e.control.SetTarget(cfg.TargetWinRate)
	e.history.SetWindow(cfg.HistoryWindow)

	slog.Info("config updated",
		"max_daily_rounds", cfg.MaxDailyRounds,
		"max_daily_wager", cfg.MaxDailyWager,
		"win_multiplier_bp", cfg.WinMultiplierBP,
		"target_win_rate", cfg.TargetWinRate,
	)
	return nil
}

// Config returns the current runtime configuration.
func (e *Engine) Config() Config { return e.config() }

// RegisterAsset adds or replaces a supported asset.
func (e *Engine) RegisterAsset(asset model.SupportedAsset) error {
	return e.pricing.RegisterAsset(asset)
}

// DeactivateAsset marks an asset inactive.
func (e *Engine) DeactivateAsset(id string) error {
	return e.pricing.DeactivateAsset(id)
}

// ListAssets returns the asset registry.
func (e *Engine) ListAssets() []model.SupportedAsset {
	return e.pricing.ListAssets()
}

// Reconcile checks the global invariant: purchases minus cashouts minus
// house earnings must equal the sum of all balances. Returns the
// difference, zero when reconciled.
func (e *Engine) Reconcile() int64 {
	e.statsMu.Lock()
	expected := e.purchased - e.cashedOut - e.houseEarnings
	e.statsMu.Unlock()
	return expected - e.ledger.TotalBalance()
}

// --- Internals ---

func (e *Engine) checkVerified(ctx context.Context, accountID string) error {
	ok, err := e.verifier.IsVerified(ctx, accountID)
	if err != nil {
		return e.reject(fmt.Errorf("%w: %v", ErrUnverified, err), "unverified")
	}
	if !ok {
		return e.reject(ErrUnverified, "unverified")
	}
	return nil
}

// reject counts the rejection and returns the error unchanged.
func (e *Engine) reject(err error, reason string) error {
	metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	return err
}

// oracleReject classifies oracle-path failures for metrics.
func (e *Engine) oracleReject(err error) error {
	switch {
	case errors.Is(err, pricing.ErrStalePrice):
		metrics.OracleFailures.WithLabelValues("stale").Inc()
	case errors.Is(err, pricing.ErrOracleUnavailable):
		metrics.OracleFailures.WithLabelValues("unavailable").Inc()
	default:
		return e.reject(err, "pricing")
	}
	return err
}

// emit appends an event and broadcasts it; emission happens only after
// the operation has committed.
func (e *Engine) emit(ctx context.Context, accountID string, kind model.EventKind, refID string, payload any) {
	entry, err := e.events.Append(context.WithoutCancel(ctx), accountID, kind, refID, payload, e.now())
	if err != nil {
		slog.Error("event emission failed", "kind", kind, "ref", refID, "err", err)
		return
	}
	if e.hub != nil {
		e.hub.BroadcastEntry(*entry)
	}
}

func (e *Engine) nextMatchSeq(accountID string) uint64 {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()
	e.matchSeq[accountID]++
	return e.matchSeq[accountID]
}

func (e *Engine) undoMatchSeq(accountID string) {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()
	if e.matchSeq[accountID] > 0 {
		e.matchSeq[accountID]--
	}
}

// recordRound updates reconciliation totals and the win-rate gauge.
func (e *Engine) recordRound(stake, payout int64, outcome model.Outcome) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.houseEarnings += stake - payout
	metrics.HouseEarnings.Set(float64(e.houseEarnings))

	if outcome != model.OutcomeTie {
		e.decided++
		if outcome == model.OutcomeLose {
			e.oppWins++
		}
		metrics.OpponentWinRate.Set(float64(e.oppWins) / float64(e.decided))
	}
}

// lockMap provides one mutex per account, created lazily.
type lockMap struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// acquire locks the account's mutex and returns its unlock func.
func (m *lockMap) acquire(accountID string) func() {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
