package store

import (
	"context"
	"sync"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	audit    []model.AuditEntry
	matches  []model.Match
	counters map[string]*model.DailyCounter // key: accountID + "|" + day
	events   []model.EventLogEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
		counters: make(map[string]*model.DailyCounter),
	}
}

func counterKey(accountID, day string) string { return accountID + "|" + day }

func (s *MemoryStore) SaveAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, *a)
	}
	return accounts, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, *e)
	return nil
}

func (s *MemoryStore) AuditByAccount(_ context.Context, accountID string) ([]model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.AuditEntry
	for _, e := range s.audit {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) InsertMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches = append(s.matches, *m)
	return nil
}

func (s *MemoryStore) MatchesByAccount(_ context.Context, accountID string, limit int) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first.
	var result []model.Match
	for i := len(s.matches) - 1; i >= 0; i-- {
		if s.matches[i].AccountID != accountID {
			continue
		}
		result = append(result, s.matches[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) SaveDailyCounter(_ context.Context, c *model.DailyCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.counters[counterKey(c.AccountID, c.Day)] = &cp
	return nil
}

func (s *MemoryStore) GetDailyCounter(_ context.Context, accountID, day string) (*model.DailyCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[counterKey(accountID, day)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *model.EventLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) EventsSince(_ context.Context, seq uint64, limit int) ([]model.EventLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.EventLogEntry
	for _, e := range s.events {
		if e.Seq <= seq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) LastEventSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for _, e := range s.events {
		if e.Seq > last {
			last = e.Seq
		}
	}
	return last, nil
}
