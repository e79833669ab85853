package eventlog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RPS-Stake/rps-stake/internal/eventlog"
	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/store"
)

var ts = time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)

func newLog(t *testing.T) (*eventlog.Log, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	l, err := eventlog.New(context.Background(), ms)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	return l, ms
}

func TestAppend_AssignsSequences(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()

	e1, err := l.Append(ctx, "a", model.EventPurchase, "ref1", map[string]int{"credits": 100}, ts)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	e2, _ := l.Append(ctx, "b", model.EventRound, "ref2", nil, ts)
	e3, _ := l.Append(ctx, "a", model.EventCashout, "ref3", nil, ts)

	if e1.Seq != 1 || e2.Seq != 2 || e3.Seq != 3 {
		t.Errorf("global seqs should be 1,2,3: got %d,%d,%d", e1.Seq, e2.Seq, e3.Seq)
	}
	if e1.AccountSeq != 1 || e3.AccountSeq != 2 {
		t.Errorf("account a seqs should be 1,2: got %d,%d", e1.AccountSeq, e3.AccountSeq)
	}
	if e2.AccountSeq != 1 {
		t.Errorf("account b seq should be 1, got %d", e2.AccountSeq)
	}
}

func TestAppend_MarshalsPayload(t *testing.T) {
	l, _ := newLog(t)

	entry, err := l.Append(context.Background(), "a", model.EventRound, "m1",
		map[string]string{"outcome": "win"}, ts)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	var payload map[string]string
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		t.Fatalf("payload should be valid JSON: %v", err)
	}
	if payload["outcome"] != "win" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestAppend_ConcurrentPersistedInSequenceOrder(t *testing.T) {
	l, ms := newLog(t)
	ctx := context.Background()

	const workers, perWorker = 16, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			account := fmt.Sprintf("acct%d", w)
			for i := 0; i < perWorker; i++ {
				if _, err := l.Append(ctx, account, model.EventRound, "ref", nil, ts); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	const total = workers * perWorker
	events, err := l.Since(ctx, 0, 0)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(events) != total {
		t.Fatalf("expected %d events, got %d", total, len(events))
	}
	// The store must hold entries in exact sequence order: a reader
	// paging with Since never skips or reorders an entry.
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("events[%d].Seq = %d, want %d", i, e.Seq, i+1)
		}
	}
	last, err := ms.LastEventSeq(ctx)
	if err != nil {
		t.Fatalf("last seq: %v", err)
	}
	if last != total {
		t.Errorf("LastEventSeq = %d, want %d", last, total)
	}
}

func TestSince_ReturnsOrderedTail(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Append(ctx, "a", model.EventRound, "ref", nil, ts)
	}

	events, err := l.Since(ctx, 2, 100)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events after seq 2, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != uint64(3+i) {
			t.Errorf("events[%d].Seq = %d, want %d", i, e.Seq, 3+i)
		}
	}
}

func TestSince_RespectsLimit(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Append(ctx, "a", model.EventRound, "ref", nil, ts)
	}

	events, _ := l.Since(ctx, 0, 2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("limited read should start from the oldest: got %d,%d",
			events[0].Seq, events[1].Seq)
	}
}

func TestNew_ResumesAfterPersistedSeq(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	l1, err := eventlog.New(ctx, ms)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	for i := 0; i < 3; i++ {
		l1.Append(ctx, "a", model.EventRound, "ref", nil, ts)
	}

	// A fresh log over the same store continues the global sequence.
	l2, err := eventlog.New(ctx, ms)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	entry, err := l2.Append(ctx, "a", model.EventRound, "ref", nil, ts)
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if entry.Seq != 4 {
		t.Errorf("resumed log should continue at seq 4, got %d", entry.Seq)
	}
}
