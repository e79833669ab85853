// Package opponent chooses the automated opponent's action each round.
// It is split into a pattern recognizer over the bounded move history,
// a win-rate controller that keeps the realized win rate near a
// configured target, and a move selector that samples from a blended
// distribution using a caller-injected random source.
package opponent

import (
	"sync"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

// HistoryBook keeps the bounded per-account window of recent round
// inputs. Appended by the settlement engine only after a round
// resolves; oldest entries are evicted on overflow.
type HistoryBook struct {
	mu     sync.RWMutex
	window int
	moves  map[string][]model.Action
}

// NewHistoryBook creates a history book with the given window size.
func NewHistoryBook(window int) *HistoryBook {
	if window < 1 {
		window = 1
	}
	return &HistoryBook{
		window: window,
		moves:  make(map[string][]model.Action),
	}
}

// SetWindow changes the window size. Admin-only; existing windows are
// trimmed on their next append.
func (h *HistoryBook) SetWindow(window int) {
	if window < 1 {
		window = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.window = window
}

// Record appends a round input for the account, evicting the oldest
// entry when the window overflows.
func (h *HistoryBook) Record(accountID string, a model.Action) {
	h.mu.Lock()
	defer h.mu.Unlock()

	moves := append(h.moves[accountID], a)
	if over := len(moves) - h.window; over > 0 {
		moves = moves[over:]
	}
	h.moves[accountID] = moves
}

// Moves returns a copy of the account's current window, oldest first.
func (h *HistoryBook) Moves(accountID string) []model.Action {
	h.mu.RLock()
	defer h.mu.RUnlock()

	moves := h.moves[accountID]
	out := make([]model.Action, len(moves))
	copy(out, moves)
	return out
}
