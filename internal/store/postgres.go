package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Credit amounts are stored as BIGINT minor units.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, credit_balance, last_known_day)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET credit_balance = EXCLUDED.credit_balance,
		     last_known_day = EXCLUDED.last_known_day`,
		a.ID, a.CreditBalance, a.LastKnownDay,
	)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, credit_balance, last_known_day FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.CreditBalance, &a.LastKnownDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, credit_balance, last_known_day FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.CreditBalance, &a.LastKnownDay); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, account_id, reason, amount, balance, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.AccountID, e.Reason, e.Amount, e.Balance, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) AuditByAccount(ctx context.Context, accountID string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, reason, amount, balance, timestamp
		 FROM audit_entries WHERE account_id = $1 ORDER BY timestamp`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Reason, &e.Amount, &e.Balance, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) InsertMatch(ctx context.Context, m *model.Match) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (id, account_id, player_action, opponent_action, outcome, stake, payout, seq, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.AccountID, string(m.PlayerAction), string(m.OpponentAction),
		string(m.Outcome), m.Stake, m.Payout, m.Seq, m.Timestamp,
	)
	return err
}

func (s *PostgresStore) MatchesByAccount(ctx context.Context, accountID string, limit int) ([]model.Match, error) {
	q := `SELECT id, account_id, player_action, opponent_action, outcome, stake, payout, seq, timestamp
	      FROM matches WHERE account_id = $1 ORDER BY seq DESC`
	args := []any{accountID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var player, opp, outcome string
		if err := rows.Scan(&m.ID, &m.AccountID, &player, &opp, &outcome,
			&m.Stake, &m.Payout, &m.Seq, &m.Timestamp); err != nil {
			return nil, err
		}
		m.PlayerAction = model.Action(player)
		m.OpponentAction = model.Action(opp)
		m.Outcome = model.Outcome(outcome)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) SaveDailyCounter(ctx context.Context, c *model.DailyCounter) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_counters (account_id, day, rounds_played, credits_wagered)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id, day) DO UPDATE
		 SET rounds_played = EXCLUDED.rounds_played,
		     credits_wagered = EXCLUDED.credits_wagered`,
		c.AccountID, c.Day, c.RoundsPlayed, c.CreditsWagered,
	)
	return err
}

func (s *PostgresStore) GetDailyCounter(ctx context.Context, accountID, day string) (*model.DailyCounter, error) {
	var c model.DailyCounter
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, day, rounds_played, credits_wagered
		 FROM daily_counters WHERE account_id = $1 AND day = $2`, accountID, day).
		Scan(&c.AccountID, &c.Day, &c.RoundsPlayed, &c.CreditsWagered)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get daily counter %s/%s: %w", accountID, day, err)
	}
	return &c, nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *model.EventLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_log (seq, account_seq, account_id, kind, ref_id, payload, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Seq, e.AccountSeq, e.AccountID, string(e.Kind), e.RefID, []byte(e.Payload), e.Timestamp,
	)
	return err
}

func (s *PostgresStore) EventsSince(ctx context.Context, seq uint64, limit int) ([]model.EventLogEntry, error) {
	q := `SELECT seq, account_seq, account_id, kind, ref_id, payload, timestamp
	      FROM event_log WHERE seq > $1 ORDER BY seq`
	args := []any{seq}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.EventLogEntry
	for rows.Next() {
		var e model.EventLogEntry
		var kind string
		var payload []byte
		if err := rows.Scan(&e.Seq, &e.AccountSeq, &e.AccountID, &kind, &e.RefID, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Kind = model.EventKind(kind)
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) LastEventSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM event_log`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
