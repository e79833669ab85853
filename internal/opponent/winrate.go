package opponent

import "sync"

// Scope selects whether the realized win rate is tracked per account or
// platform-wide.
type Scope string

const (
	ScopeAccount Scope = "account"
	ScopeGlobal  Scope = "global"
)

// globalKey is the single bucket used under ScopeGlobal.
const globalKey = "\x00global"

// WinRateStats is the controller's view of one account handed to the
// move selector.
type WinRateStats struct {
	Target   float64 // configured opponent win probability
	Realized float64 // rolling realized rate over decided rounds
	Samples  int     // decided rounds in the rolling window
	Bias     float64 // corrective signal in [-1, 1]
}

// Controller maintains a rolling realized win-rate estimate over the
// last N decided rounds (ties excluded) and computes the deviation from
// target as a bias: positive when the opponent under-performs its
// target, negative when it over-performs, zero at target.
type Controller struct {
	mu      sync.Mutex
	target  float64
	window  int
	gain    float64
	scope   Scope
	results map[string][]bool // true = opponent won
}

// NewController creates a controller. window is the rolling sample size
// and gain scales the deviation into the bias before clamping.
func NewController(target float64, window int, gain float64, scope Scope) *Controller {
	if window < 1 {
		window = 1
	}
	if scope != ScopeGlobal {
		scope = ScopeAccount
	}
	return &Controller{
		target:  target,
		window:  window,
		gain:    gain,
		scope:   scope,
		results: make(map[string][]bool),
	}
}

// SetTarget updates the target win probability. Admin-only.
func (c *Controller) SetTarget(target float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
}

func (c *Controller) bucket(accountID string) string {
	if c.scope == ScopeGlobal {
		return globalKey
	}
	return accountID
}

// RecordDecided feeds one decided (non-tie) round into the rolling
// window.
func (c *Controller) RecordDecided(accountID string, opponentWon bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.bucket(accountID)
	rs := append(c.results[k], opponentWon)
	if over := len(rs) - c.window; over > 0 {
		rs = rs[over:]
	}
	c.results[k] = rs
}

// Stats returns the current rolling estimate and bias for the account.
// With no samples yet the realized rate is assumed at target (bias 0).
func (c *Controller) Stats(accountID string) WinRateStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rs := c.results[c.bucket(accountID)]
	stats := WinRateStats{Target: c.target, Realized: c.target, Samples: len(rs)}

	if len(rs) > 0 {
		wins := 0
		for _, won := range rs {
			if won {
				wins++
			}
		}
		stats.Realized = float64(wins) / float64(len(rs))
	}

	bias := (c.target - stats.Realized) * c.gain
	if bias > 1 {
		bias = 1
	}
	if bias < -1 {
		bias = -1
	}
	stats.Bias = bias
	return stats
}
