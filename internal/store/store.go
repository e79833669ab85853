// Package store defines the persistence interface for the stake ledger.
// Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
//
// The engine commits records here only after an operation has fully
// resolved in memory, so a store implementation never observes a
// half-finished round, purchase, or cashout.
package store

import (
	"context"
	"errors"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface for durable records.
type Store interface {
	// --- Account snapshots ---

	// SaveAccount upserts an account snapshot.
	SaveAccount(ctx context.Context, a *model.Account) error

	// GetAccount retrieves an account snapshot by id.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// ListAccounts returns all known account snapshots.
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// --- Immutable audit trail ---

	// AppendAudit appends an immutable ledger mutation record.
	AppendAudit(ctx context.Context, e *model.AuditEntry) error

	// AuditByAccount returns the audit trail for one account, oldest first.
	AuditByAccount(ctx context.Context, accountID string) ([]model.AuditEntry, error)

	// --- Immutable match records ---

	// InsertMatch appends an immutable resolved-round record.
	InsertMatch(ctx context.Context, m *model.Match) error

	// MatchesByAccount returns up to limit matches, newest first.
	// limit <= 0 means no limit.
	MatchesByAccount(ctx context.Context, accountID string, limit int) ([]model.Match, error)

	// --- Daily counters ---

	// SaveDailyCounter upserts a per-(account, day) counter snapshot.
	SaveDailyCounter(ctx context.Context, c *model.DailyCounter) error

	// GetDailyCounter retrieves one counter; ErrNotFound when absent
	// (absence is equivalent to zero).
	GetDailyCounter(ctx context.Context, accountID, day string) (*model.DailyCounter, error)

	// --- Append-only event log ---

	// AppendEvent appends an immutable event log entry.
	AppendEvent(ctx context.Context, e *model.EventLogEntry) error

	// EventsSince returns up to limit entries with Seq > seq, in order.
	// limit <= 0 means no limit.
	EventsSince(ctx context.Context, seq uint64, limit int) ([]model.EventLogEntry, error)

	// LastEventSeq returns the highest assigned event sequence number,
	// or zero when the log is empty.
	LastEventSeq(ctx context.Context) (uint64, error)
}
