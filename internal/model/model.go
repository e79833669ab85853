// Package model defines the core domain types shared across the stake
// ledger and match engine. Credit balances are int64 minor units — never
// float64 for money. Asset-side quantities use shopspring/decimal.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is one of the three legal round inputs.
type Action string

const (
	ActionRock     Action = "ROCK"
	ActionPaper    Action = "PAPER"
	ActionScissors Action = "SCISSORS"
)

// Actions lists the legal actions in a fixed order, used for uniform
// sampling and distribution construction.
var Actions = [3]Action{ActionRock, ActionPaper, ActionScissors}

// Valid reports whether a is a legal round input.
func (a Action) Valid() bool {
	return a == ActionRock || a == ActionPaper || a == ActionScissors
}

// ParseAction validates and normalizes an action string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("invalid action %q", s)
	}
	return a, nil
}

// beats maps each action to the action it defeats.
// The cycle is fixed: ROCK beats SCISSORS, PAPER beats ROCK,
// SCISSORS beats PAPER.
var beats = map[Action]Action{
	ActionRock:     ActionScissors,
	ActionPaper:    ActionRock,
	ActionScissors: ActionPaper,
}

// Beats reports whether a defeats b.
func (a Action) Beats(b Action) bool {
	return beats[a] == b
}

// Counter returns the action that defeats a.
func Counter(a Action) Action {
	switch a {
	case ActionRock:
		return ActionPaper
	case ActionPaper:
		return ActionScissors
	default:
		return ActionRock
	}
}

// Outcome is the result of a round from the player's perspective.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeTie  Outcome = "tie"
	OutcomeLose Outcome = "lose"
)

// Resolve returns the round outcome for the player given both actions.
func Resolve(player, opponent Action) Outcome {
	switch {
	case player == opponent:
		return OutcomeTie
	case player.Beats(opponent):
		return OutcomeWin
	default:
		return OutcomeLose
	}
}

// Account holds an account's authoritative credit balance. Owned
// exclusively by the ledger; all balance mutation goes through it.
type Account struct {
	ID            string `json:"id" db:"id"`
	CreditBalance int64  `json:"credit_balance" db:"credit_balance"`
	LastKnownDay  string `json:"last_known_day" db:"last_known_day"`
}

// SupportedAsset describes an external asset credits can be exchanged
// for. Owned by the pricing registry; admin-mutated only.
// Min/Max purchase bounds are expressed in credits.
type SupportedAsset struct {
	ID          string `json:"id" db:"id"`
	FeedRef     string `json:"feed_ref" db:"feed_ref"`
	Precision   int32  `json:"precision" db:"precision"`
	MinPurchase int64  `json:"min_purchase" db:"min_purchase"`
	MaxPurchase int64  `json:"max_purchase" db:"max_purchase"`
	Active      bool   `json:"active" db:"active"`
}

// DailyCounter tracks per-account participation for one UTC day.
// Created lazily on first use of a new day key; absence of a row for
// "today" is equivalent to zero.
type DailyCounter struct {
	AccountID      string `json:"account_id" db:"account_id"`
	Day            string `json:"day" db:"day"` // YYYY-MM-DD, UTC
	RoundsPlayed   int    `json:"rounds_played" db:"rounds_played"`
	CreditsWagered int64  `json:"credits_wagered" db:"credits_wagered"`
}

// Match is an immutable record of one resolved round.
// Once created, these are never modified or deleted.
type Match struct {
	ID             string    `json:"id" db:"id"`
	AccountID      string    `json:"account_id" db:"account_id"`
	PlayerAction   Action    `json:"player_action" db:"player_action"`
	OpponentAction Action    `json:"opponent_action" db:"opponent_action"`
	Outcome        Outcome   `json:"outcome" db:"outcome"`
	Stake          int64     `json:"stake" db:"stake"`
	Payout         int64     `json:"payout" db:"payout"`
	Seq            uint64    `json:"seq" db:"seq"` // per-account, monotonic
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}

// AuditEntry records a single ledger mutation: reason, amount, and the
// balance that resulted from it.
type AuditEntry struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Reason    string    `json:"reason" db:"reason"`
	Amount    int64     `json:"amount" db:"amount"` // signed: +credit, -debit
	Balance   int64     `json:"balance" db:"balance"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// EventKind classifies event log entries for external consumers.
type EventKind string

const (
	EventPurchase EventKind = "purchase"
	EventRound    EventKind = "round"
	EventCashout  EventKind = "cashout"
)

// EventLogEntry is an immutable, strictly ordered record referencing a
// Match, Purchase, or Cashout by id. Never mutated or reordered after
// append.
type EventLogEntry struct {
	Seq        uint64          `json:"seq" db:"seq"`
	AccountSeq uint64          `json:"account_seq" db:"account_seq"`
	AccountID  string          `json:"account_id" db:"account_id"`
	Kind       EventKind       `json:"kind" db:"kind"`
	RefID      string          `json:"ref_id" db:"ref_id"`
	Payload    json.RawMessage `json:"payload,omitempty" db:"payload"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// DayKey derives the UTC calendar-day key used for daily counters.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
