// Package eventlog is the append-only, ordered record of settlement
// events consumed by external indexing collaborators. Entries carry a
// global sequence and a per-account monotonic sequence and are never
// mutated or reordered after append.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/store"
)

// Log allocates sequence numbers and persists entries through the
// store. Append is only called from committed transactions, so emission
// never happens on a rolled-back path.
type Log struct {
	mu         sync.Mutex
	seq        uint64
	accountSeq map[string]uint64
	st         store.Store
}

// New creates a log backed by st, resuming sequence allocation after
// the highest persisted entry.
func New(ctx context.Context, st store.Store) (*Log, error) {
	last, err := st.LastEventSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventlog: resume sequence: %w", err)
	}
	return &Log{
		seq:        last,
		accountSeq: make(map[string]uint64),
		st:         st,
	}, nil
}

// Append records one event referencing a match, purchase, or cashout.
// The payload is marshaled to JSON; sequence allocation and the store
// append happen under one lock so the persisted order always matches
// the sequence order, even across accounts. On a store failure the
// counters roll back and no sequence gap is left.
func (l *Log) Append(ctx context.Context, accountID string, kind model.EventKind, refID string, payload any, ts time.Time) (*model.EventLogEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("eventlog: marshal payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.accountSeq[accountID]++
	entry := &model.EventLogEntry{
		Seq:        l.seq,
		AccountSeq: l.accountSeq[accountID],
		AccountID:  accountID,
		Kind:       kind,
		RefID:      refID,
		Payload:    raw,
		Timestamp:  ts.UTC(),
	}

	if err := l.st.AppendEvent(ctx, entry); err != nil {
		l.seq--
		l.accountSeq[accountID]--
		return nil, fmt.Errorf("eventlog: append: %w", err)
	}
	return entry, nil
}

// Since returns up to limit entries with Seq greater than seq, oldest
// first.
func (l *Log) Since(ctx context.Context, seq uint64, limit int) ([]model.EventLogEntry, error) {
	return l.st.EventsSince(ctx, seq, limit)
}
