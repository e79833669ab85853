// Package ledger keeps the authoritative per-account credit balance and
// its audit trail. Balances are int64 minor units; every mutation is
// integer-only, overflow-checked, and appends an audit record.
//
// The ledger is the single mutation entry point for balances. Callers
// (the settlement engine) are responsible for serializing operations on
// one account; the ledger's own lock only protects map integrity.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RPS-Stake/rps-stake/internal/metrics"
	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/store"
)

// ErrInsufficientBalance is returned when a debit exceeds the account's
// balance. The balance is left untouched.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// FatalError indicates a broken invariant (arithmetic overflow, an
// attempted negative balance, a non-positive mutation amount). It is a
// defect, not a recoverable user error, and is deliberately a distinct
// type so it cannot be matched as one of the validation sentinels.
type FatalError struct {
	Op        string
	AccountID string
	Detail    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ledger: fatal: %s on account %s: %s", e.Op, e.AccountID, e.Detail)
}

// IsFatal reports whether err is (or wraps) a ledger invariant violation.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Ledger is the authoritative balance keeper. Accounts are created
// lazily on first credit.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	st       store.Store
	now      func() time.Time
}

// New creates a ledger backed by st for audit records and account
// snapshots.
func New(st store.Store) *Ledger {
	return &Ledger{
		accounts: make(map[string]*model.Account),
		st:       st,
		now:      time.Now,
	}
}

// SetNow injects the time source used for audit timestamps.
func (l *Ledger) SetNow(now func() time.Time) { l.now = now }

// Restore seeds an account snapshot loaded from the store. Called only
// during engine construction, before any mutation traffic.
func (l *Ledger) Restore(a model.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := a
	l.accounts[a.ID] = &cp
}

// Balance returns the current balance for an account. Unknown accounts
// have balance zero.
func (l *Ledger) Balance(accountID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a, ok := l.accounts[accountID]; ok {
		return a.CreditBalance
	}
	return 0
}

// TotalBalance returns the sum of all account balances, used for
// reconciliation checks.
func (l *Ledger) TotalBalance() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, a := range l.accounts {
		total += a.CreditBalance
	}
	return total
}

// Credit adds amount to the account, creating it if needed, and returns
// the new balance. amount must be positive; the result must not
// overflow int64.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, &FatalError{Op: "credit", AccountID: accountID,
			Detail: fmt.Sprintf("non-positive amount %d", amount)}
	}

	l.mu.Lock()
	a, ok := l.accounts[accountID]
	if !ok {
		a = &model.Account{ID: accountID}
		l.accounts[accountID] = a
	}
	if a.CreditBalance > math.MaxInt64-amount {
		l.mu.Unlock()
		return 0, &FatalError{Op: "credit", AccountID: accountID,
			Detail: fmt.Sprintf("balance overflow: %d + %d", a.CreditBalance, amount)}
	}
	a.CreditBalance += amount
	balance := a.CreditBalance
	snapshot := *a
	l.mu.Unlock()

	l.record(ctx, accountID, reason, amount, balance, &snapshot)
	return balance, nil
}

// Debit removes amount from the account and returns the new balance.
// Fails ErrInsufficientBalance when amount exceeds the balance; the
// balance is never left negative.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, &FatalError{Op: "debit", AccountID: accountID,
			Detail: fmt.Sprintf("non-positive amount %d", amount)}
	}

	l.mu.Lock()
	a, ok := l.accounts[accountID]
	if !ok || a.CreditBalance < amount {
		l.mu.Unlock()
		return 0, ErrInsufficientBalance
	}
	a.CreditBalance -= amount
	if a.CreditBalance < 0 {
		// Unreachable given the check above; kept as the invariant guard.
		a.CreditBalance += amount
		l.mu.Unlock()
		return 0, &FatalError{Op: "debit", AccountID: accountID, Detail: "negative balance"}
	}
	balance := a.CreditBalance
	snapshot := *a
	l.mu.Unlock()

	l.record(ctx, accountID, reason, -amount, balance, &snapshot)
	return balance, nil
}

// MarkDay stamps the account's last-known UTC day, used by the engine
// when a round resolves.
func (l *Ledger) MarkDay(accountID, day string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.accounts[accountID]; ok {
		a.LastKnownDay = day
	}
}

// AuditTrail returns the persisted audit records for an account.
func (l *Ledger) AuditTrail(ctx context.Context, accountID string) ([]model.AuditEntry, error) {
	return l.st.AuditByAccount(ctx, accountID)
}

// record persists the audit entry and the account snapshot. A store
// failure does not unwind the committed in-memory balance (the in-memory
// ledger is authoritative for a single-instance deployment), but it
// means the durable trail has diverged, so it is logged at error level
// and counted for alerting.
func (l *Ledger) record(ctx context.Context, accountID, reason string, amount, balance int64, snapshot *model.Account) {
	entry := &model.AuditEntry{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Reason:    reason,
		Amount:    amount,
		Balance:   balance,
		Timestamp: l.now().UTC(),
	}
	if err := l.st.AppendAudit(ctx, entry); err != nil {
		metrics.StoreFailures.WithLabelValues("append_audit").Inc()
		slog.Error("audit append failed",
			"account", accountID, "reason", reason,
			"amount", amount, "balance", balance, "error", err)
	}
	if err := l.st.SaveAccount(ctx, snapshot); err != nil {
		metrics.StoreFailures.WithLabelValues("save_account").Inc()
		slog.Error("account snapshot save failed",
			"account", accountID, "balance", balance, "error", err)
	}
}
