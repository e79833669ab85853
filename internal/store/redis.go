package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis
// read-through cache for account snapshots and match history. Writes go
// to the primary store and invalidate the cache; reads check Redis first
// then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) SaveAccount(ctx context.Context, a *model.Account) error {
	if err := s.primary.SaveAccount(ctx, a); err != nil {
		return err
	}
	s.cacheAccount(ctx, a)
	return nil
}

func (s *CachedStore) InsertMatch(ctx context.Context, m *model.Match) error {
	if err := s.primary.InsertMatch(ctx, m); err != nil {
		return err
	}
	// Invalidate match-history cache for this account.
	s.rdb.Del(ctx, matchesKey(m.AccountID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(id)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	// Cache miss: read from primary.
	a, err := s.primary.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, a)
	return a, nil
}

func (s *CachedStore) MatchesByAccount(ctx context.Context, accountID string, limit int) ([]model.Match, error) {
	// Only the unbounded query is cached; bounded queries pass through.
	if limit > 0 {
		return s.primary.MatchesByAccount(ctx, accountID, limit)
	}

	data, err := s.rdb.Get(ctx, matchesKey(accountID)).Bytes()
	if err == nil {
		var matches []model.Match
		if json.Unmarshal(data, &matches) == nil {
			return matches, nil
		}
	}

	matches, err := s.primary.MatchesByAccount(ctx, accountID, 0)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(matches); err == nil {
		s.rdb.Set(ctx, matchesKey(accountID), data, s.ttl)
	}
	return matches, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.primary.ListAccounts(ctx)
}

func (s *CachedStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	return s.primary.AppendAudit(ctx, e)
}

func (s *CachedStore) AuditByAccount(ctx context.Context, accountID string) ([]model.AuditEntry, error) {
	return s.primary.AuditByAccount(ctx, accountID)
}

func (s *CachedStore) SaveDailyCounter(ctx context.Context, c *model.DailyCounter) error {
	return s.primary.SaveDailyCounter(ctx, c)
}

func (s *CachedStore) GetDailyCounter(ctx context.Context, accountID, day string) (*model.DailyCounter, error) {
	return s.primary.GetDailyCounter(ctx, accountID, day)
}

func (s *CachedStore) AppendEvent(ctx context.Context, e *model.EventLogEntry) error {
	return s.primary.AppendEvent(ctx, e)
}

func (s *CachedStore) EventsSince(ctx context.Context, seq uint64, limit int) ([]model.EventLogEntry, error) {
	return s.primary.EventsSince(ctx, seq, limit)
}

func (s *CachedStore) LastEventSeq(ctx context.Context) (uint64, error) {
	return s.primary.LastEventSeq(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, a *model.Account) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, accountKey(a.ID), data, s.ttl)
	}
}

func accountKey(id string) string { return fmt.Sprintf("account:%s", id) }
func matchesKey(id string) string { return fmt.Sprintf("matches:%s", id) }
