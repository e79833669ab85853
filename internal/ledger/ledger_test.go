package ledger_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/RPS-Stake/rps-stake/internal/ledger"
	"github.com/RPS-Stake/rps-stake/internal/metrics"
	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/store"
)

func newLedger(t *testing.T) (*ledger.Ledger, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return ledger.New(ms), ms
}

// --- Credit / debit tests ---

func TestCredit_CreatesAccount(t *testing.T) {
	l, _ := newLedger(t)

	balance, err := l.Credit(context.Background(), "acct1", 100, "purchase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 100 {
		t.Errorf("expected balance 100, got %d", balance)
	}
	if l.Balance("acct1") != 100 {
		t.Errorf("Balance should report 100, got %d", l.Balance("acct1"))
	}
}

func TestBalance_UnknownAccountIsZero(t *testing.T) {
	l, _ := newLedger(t)
	if b := l.Balance("nobody"); b != 0 {
		t.Errorf("unknown account should have balance 0, got %d", b)
	}
}

func TestDebit_ReducesBalance(t *testing.T) {
	l, _ := newLedger(t)
	l.Credit(context.Background(), "acct1", 100, "purchase")

	balance, err := l.Debit(context.Background(), "acct1", 40, "round_stake")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 60 {
		t.Errorf("expected balance 60, got %d", balance)
	}
}

func TestDebit_Insufficient(t *testing.T) {
	l, _ := newLedger(t)
	l.Credit(context.Background(), "acct1", 50, "purchase")

	_, err := l.Debit(context.Background(), "acct1", 51, "round_stake")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	// Failed debit must not move the balance.
	if l.Balance("acct1") != 50 {
		t.Errorf("balance should be unchanged at 50, got %d", l.Balance("acct1"))
	}
}

func TestDebit_ExactBalanceToZero(t *testing.T) {
	l, _ := newLedger(t)
	l.Credit(context.Background(), "acct1", 50, "purchase")

	balance, err := l.Debit(context.Background(), "acct1", 50, "cashout")
	if err != nil {
		t.Fatalf("debiting the full balance should succeed: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected balance 0, got %d", balance)
	}
}

func TestDebit_UnknownAccount(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Debit(context.Background(), "nobody", 1, "round_stake")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

// --- Invariant violation tests ---

func TestCredit_NonPositiveAmountIsFatal(t *testing.T) {
	l, _ := newLedger(t)

	for _, amount := range []int64{0, -1, -100} {
		_, err := l.Credit(context.Background(), "acct1", amount, "purchase")
		if !ledger.IsFatal(err) {
			t.Errorf("Credit(%d) should be fatal, got %v", amount, err)
		}
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			t.Errorf("fatal error must not match the insufficient-balance sentinel")
		}
	}
}

func TestDebit_NonPositiveAmountIsFatal(t *testing.T) {
	l, _ := newLedger(t)
	l.Credit(context.Background(), "acct1", 100, "purchase")

	for _, amount := range []int64{0, -5} {
		_, err := l.Debit(context.Background(), "acct1", amount, "round_stake")
		if !ledger.IsFatal(err) {
			t.Errorf("Debit(%d) should be fatal, got %v", amount, err)
		}
	}
}

func TestCredit_OverflowIsFatal(t *testing.T) {
	l, _ := newLedger(t)
	l.Credit(context.Background(), "acct1", math.MaxInt64-10, "purchase")

	_, err := l.Credit(context.Background(), "acct1", 11, "purchase")
	if !ledger.IsFatal(err) {
		t.Errorf("overflowing credit should be fatal, got %v", err)
	}
	// Balance untouched after the rejected mutation.
	if l.Balance("acct1") != math.MaxInt64-10 {
		t.Errorf("balance should be unchanged, got %d", l.Balance("acct1"))
	}
}

// --- Aggregate and audit tests ---

func TestTotalBalance_SumsAccounts(t *testing.T) {
	l, _ := newLedger(t)
	l.Credit(context.Background(), "a", 100, "purchase")
	l.Credit(context.Background(), "b", 250, "purchase")
	l.Debit(context.Background(), "a", 30, "cashout")

	if total := l.TotalBalance(); total != 320 {
		t.Errorf("expected total 320, got %d", total)
	}
}

func TestAuditTrail_RecordsEveryMutation(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	l.Credit(ctx, "acct1", 100, "purchase")
	l.Debit(ctx, "acct1", 5, "round_stake")
	l.Credit(ctx, "acct1", 6, "round_payout")

	entries, err := l.AuditTrail(ctx, "acct1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}

	wantAmounts := []int64{100, -5, 6}
	wantBalances := []int64{100, 95, 101}
	for i, e := range entries {
		if e.Amount != wantAmounts[i] {
			t.Errorf("entry %d: expected amount %d, got %d", i, wantAmounts[i], e.Amount)
		}
		if e.Balance != wantBalances[i] {
			t.Errorf("entry %d: expected balance %d, got %d", i, wantBalances[i], e.Balance)
		}
		if e.ID == "" {
			t.Errorf("entry %d: expected non-empty id", i)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("entry %d: expected non-zero timestamp", i)
		}
	}
}

func TestAuditTrail_FailedMutationLeavesNoEntry(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	l.Credit(ctx, "acct1", 10, "purchase")
	l.Debit(ctx, "acct1", 999, "round_stake") // fails

	entries, _ := l.AuditTrail(ctx, "acct1")
	if len(entries) != 1 {
		t.Errorf("failed debit should not be audited: expected 1 entry, got %d", len(entries))
	}
}

// faultyAuditStore simulates a broken audit sink under an otherwise
// working store.
type faultyAuditStore struct {
	*store.MemoryStore
	failAudit bool
}

func (s *faultyAuditStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if s.failAudit {
		return errors.New("audit sink down")
	}
	return s.MemoryStore.AppendAudit(ctx, e)
}

func TestCredit_AuditFailureCommitsAndIsCounted(t *testing.T) {
	st := &faultyAuditStore{MemoryStore: store.NewMemoryStore(), failAudit: true}
	l := ledger.New(st)
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.StoreFailures.WithLabelValues("append_audit"))

	balance, err := l.Credit(ctx, "acct1", 100, "purchase")
	if err != nil {
		t.Fatalf("credit must not fail on an audit sink error: %v", err)
	}
	if balance != 100 {
		t.Errorf("expected balance 100, got %d", balance)
	}

	// The divergence between the authoritative balance and the durable
	// trail must be observable, not silent.
	after := testutil.ToFloat64(metrics.StoreFailures.WithLabelValues("append_audit"))
	if after != before+1 {
		t.Errorf("audit failure should be counted once: before %v, after %v", before, after)
	}

	entries, _ := l.AuditTrail(ctx, "acct1")
	if len(entries) != 0 {
		t.Errorf("broken sink holds no entries, got %d", len(entries))
	}
	if l.Balance("acct1") != 100 {
		t.Errorf("in-memory balance stays authoritative, got %d", l.Balance("acct1"))
	}
}
