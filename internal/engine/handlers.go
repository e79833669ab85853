package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RPS-Stake/rps-stake/internal/ledger"
	"github.com/RPS-Stake/rps-stake/internal/limits"
	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/opponent"
	"github.com/RPS-Stake/rps-stake/internal/pricing"
)

// --- Request bodies ---

// PlayRoundBody is the JSON body for POST /api/v1/rounds.
type PlayRoundBody struct {
	AccountID  string `json:"account_id"`
	Action     string `json:"action"`
	Stake      int64  `json:"stake"`
	Difficulty string `json:"difficulty,omitempty"`
}

// ExchangeBody is the JSON body for purchases and cashouts.
type ExchangeBody struct {
	AccountID string `json:"account_id"`
	AssetID   string `json:"asset_id"`
	Credits   int64  `json:"credits"`
}

// --- Handlers ---

// HandlePlayRound handles POST /api/v1/rounds.
func (e *Engine) HandlePlayRound(w http.ResponseWriter, r *http.Request) {
	var body PlayRoundBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	action, err := model.ParseAction(body.Action)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := e.PlayRound(r.Context(), RoundRequest{
		AccountID:  body.AccountID,
		Action:     action,
		Stake:      body.Stake,
		Difficulty: opponent.ParseDifficulty(body.Difficulty),
	})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandlePurchase handles POST /api/v1/purchases.
func (e *Engine) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var body ExchangeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := e.Purchase(r.Context(), PurchaseRequest(body))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCashout handles POST /api/v1/cashouts.
func (e *Engine) HandleCashout(w http.ResponseWriter, r *http.Request) {
	var body ExchangeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := e.Cashout(r.Context(), CashoutRequest(body))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleBalance handles GET /api/v1/accounts/{accountID}/balance.
func (e *Engine) HandleBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    e.BalanceOf(accountID),
	})
}

// HandleMatchHistory handles GET /api/v1/accounts/{accountID}/matches.
func (e *Engine) HandleMatchHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	limit := intQuery(r, "limit", 50)

	matches, err := e.MatchHistory(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, "failed to load match history", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleDailyCounter handles GET /api/v1/accounts/{accountID}/limits.
func (e *Engine) HandleDailyCounter(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	writeJSON(w, http.StatusOK, e.DailyCounter(accountID))
}

// HandleEvents handles GET /api/v1/events?since=N&limit=M.
func (e *Engine) HandleEvents(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	limit := intQuery(r, "limit", 100)

	events, err := e.EventsSince(r.Context(), since, limit)
	if err != nil {
		writeError(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.EventLogEntry{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Admin handlers ---

// HandleSetPause handles POST /admin/pause.
func (e *Engine) HandleSetPause(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	e.SetPaused(body.Paused)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": e.Paused()})
}

// HandleUpdateConfig handles PUT /admin/config.
func (e *Engine) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.UpdateConfig(cfg); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, e.Config())
}

// HandleGetConfig handles GET /admin/config.
func (e *Engine) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, e.Config())
}

// HandleRegisterAsset handles POST /admin/assets.
func (e *Engine) HandleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var asset model.SupportedAsset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.RegisterAsset(asset); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// HandleDeactivateAsset handles DELETE /admin/assets/{assetID}.
func (e *Engine) HandleDeactivateAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	if err := e.DeactivateAsset(assetID); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// HandleListAssets handles GET /admin/assets.
func (e *Engine) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, e.ListAssets())
}

// --- Helpers ---

// statusFor maps the error taxonomy onto HTTP status codes. Invariant
// violations surface as 500: they are defects, not user errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSystemPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnverified):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, pricing.ErrPurchaseBounds),
		errors.Is(err, pricing.ErrAmountRange):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, limits.ErrDailyRoundLimit),
		errors.Is(err, limits.ErrDailyWagerLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, pricing.ErrAssetNotSupported):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrAssetInactive):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrOracleUnavailable),
		errors.Is(err, pricing.ErrStalePrice):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func intQuery(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
