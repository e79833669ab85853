// Package limits enforces rolling per-account, per-UTC-day caps on
// rounds played and credits wagered. Counters are created lazily on
// first use of a new day key and never reset: absence of a counter for
// "today" is equivalent to zero.
package limits

import (
	"errors"
	"sync"
	"time"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

var (
	// ErrDailyRoundLimit is returned when the account has already played
	// the maximum number of rounds for the day.
	ErrDailyRoundLimit = errors.New("limits: daily round limit exceeded")

	// ErrDailyWagerLimit is returned when the stake would push the
	// account past the daily wager cap.
	ErrDailyWagerLimit = errors.New("limits: daily wager limit exceeded")
)

// Tracker keeps the per-(account, day) counters. Reserve is the only
// mutating entry point on the happy path; Release undoes a reservation
// on rollback.
type Tracker struct {
	mu        sync.Mutex
	counters  map[string]*model.DailyCounter
	maxRounds int
	maxWager  int64
}

// New creates a tracker with the given daily caps.
func New(maxRounds int, maxWager int64) *Tracker {
	return &Tracker{
		counters:  make(map[string]*model.DailyCounter),
		maxRounds: maxRounds,
		maxWager:  maxWager,
	}
}

// SetLimits updates the daily caps. Admin-only; existing counters are
// unaffected, the new caps apply from the next reservation.
func (t *Tracker) SetLimits(maxRounds int, maxWager int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxRounds = maxRounds
	t.maxWager = maxWager
}

// Prime seeds a counter snapshot loaded from the store. Called only
// during engine construction, before any reservation traffic.
func (t *Tracker) Prime(c model.DailyCounter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := c
	t.counters[key(c.AccountID, c.Day)] = &cp
}

// Reservation represents one admitted round. Release undoes the counter
// increments; it is idempotent and intended only for the rollback path.
type Reservation struct {
	t         *Tracker
	accountID string
	day       string
	stake     int64
	released  bool
}

// Reserve atomically checks both daily caps for the day derived from
// now (UTC midnight boundaries) and increments both counters, or fails
// with no mutation.
func (t *Tracker) Reserve(accountID string, stake int64, now time.Time) (*Reservation, error) {
	day := model.DayKey(now)

	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counter(accountID, day)
	if c.RoundsPlayed >= t.maxRounds {
		return nil, ErrDailyRoundLimit
	}
	if c.CreditsWagered+stake > t.maxWager {
		return nil, ErrDailyWagerLimit
	}

	c.RoundsPlayed++
	c.CreditsWagered += stake

	return &Reservation{t: t, accountID: accountID, day: day, stake: stake}, nil
}

// Release undoes the reservation's increments.
func (r *Reservation) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true

	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	c := r.t.counter(r.accountID, r.day)
	if c.RoundsPlayed > 0 {
		c.RoundsPlayed--
	}
	if c.CreditsWagered >= r.stake {
		c.CreditsWagered -= r.stake
	} else {
		c.CreditsWagered = 0
	}
}

// Counter returns a snapshot of the counter for the day derived from
// now. A zero counter is returned when none exists yet.
func (t *Tracker) Counter(accountID string, now time.Time) model.DailyCounter {
	day := model.DayKey(now)

	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.counters[key(accountID, day)]; ok {
		return *c
	}
	return model.DailyCounter{AccountID: accountID, Day: day}
}

// counter returns the live counter for (accountID, day), creating it
// lazily. Caller must hold t.mu.
func (t *Tracker) counter(accountID, day string) *model.DailyCounter {
	k := key(accountID, day)
	c, ok := t.counters[k]
	if !ok {
		c = &model.DailyCounter{AccountID: accountID, Day: day}
		t.counters[k] = c
	}
	return c
}

func key(accountID, day string) string { return accountID + "|" + day }
