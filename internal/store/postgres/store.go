// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"predictmarket/internal/model"
	"predictmarket/internal/store"
	"predictmarket/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	q_yes       DOUBLE PRECISION NOT NULL DEFAULT 0,
	q_no        DOUBLE PRECISION NOT NULL DEFAULT 0,
	b           DOUBLE PRECISION NOT NULL,
	status      TEXT NOT NULL,
	result      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	balance       NUMERIC(20,6) NOT NULL DEFAULT 0,
	is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	user_id    TEXT NOT NULL REFERENCES users(id),
	market_id  TEXT NOT NULL,
	yes_shares DOUBLE PRECISION NOT NULL DEFAULT 0,
	no_shares  DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, market_id)
);

CREATE TABLE IF NOT EXISTS trades (
	id         TEXT PRIMARY KEY,
	market_id  TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	delta_yes  DOUBLE PRECISION NOT NULL DEFAULT 0,
	delta_no   DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost       NUMERIC(20,6) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_market_user_idx ON trades (market_id, user_id);
`

type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the connection for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) GetMarket(ctx context.Context, id string) (model.Market, error) {
	var m model.Market
	var status, result string
	err := s.pool.QueryRow(ctx,
		"SELECT id, title, description, q_yes, q_no, b, status, result, created_at FROM markets WHERE id = $1", id,
	).Scan(&m.ID, &m.Title, &m.Description, &m.QYes, &m.QNo, &m.B, &status, &result, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Market{}, store.ErrNotFound
	}
	if err != nil {
		return model.Market{}, fmt.Errorf("postgres: get market: %w", err)
	}
	m.Status = types.MarketStatus(status)
	m.Result = types.Outcome(result)
	return m, nil
}

func (s *Store) UpsertMarket(ctx context.Context, m model.Market) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO markets (id, title, description, q_yes, q_no, b, status, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			q_yes       = EXCLUDED.q_yes,
			q_no        = EXCLUDED.q_no,
			b           = EXCLUDED.b,
			status      = EXCLUDED.status,
			result      = EXCLUDED.result`,
		m.ID, m.Title, m.Description, m.QYes, m.QNo, m.B, string(m.Status), string(m.Result), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, title, description, q_yes, q_no, b, status, result, created_at FROM markets ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()
	out := []model.Market{}
	for rows.Next() {
		var m model.Market
		var status, result string
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.QYes, &m.QNo, &m.B, &status, &result, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		m.Status = types.MarketStatus(status)
		m.Result = types.Outcome(result)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

func (s *Store) getUser(ctx context.Context, where, arg string) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, balance, is_admin, created_at FROM users WHERE "+where, arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Balance, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, store.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("postgres: get user: %w", err)
	}
	if err := s.loadPositions(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) loadPositions(ctx context.Context, u *model.User) error {
	rows, err := s.pool.Query(ctx,
		"SELECT market_id, yes_shares, no_shares FROM positions WHERE user_id = $1", u.ID)
	if err != nil {
		return fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var marketID string
		var p model.Position
		if err := rows.Scan(&marketID, &p.YesShares, &p.NoShares); err != nil {
			return fmt.Errorf("postgres: scan position: %w", err)
		}
		u.SetPosition(marketID, p)
	}
	return rows.Err()
}

// UpsertUser writes the user row and replaces their positions in one
// transaction so a partially written position set is never observable.
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, balance, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username      = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			balance       = EXCLUDED.balance,
			is_admin      = EXCLUDED.is_admin`,
		u.ID, u.Username, u.PasswordHash, u.Balance, u.IsAdmin, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", u.ID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM positions WHERE user_id = $1", u.ID); err != nil {
		return fmt.Errorf("postgres: clear positions: %w", err)
	}
	for marketID, p := range u.Positions {
		_, err := tx.Exec(ctx,
			"INSERT INTO positions (user_id, market_id, yes_shares, no_shares) VALUES ($1, $2, $3, $4)",
			u.ID, marketID, p.YesShares, p.NoShares)
		if err != nil {
			return fmt.Errorf("postgres: insert position: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, username, password_hash, balance, is_admin, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Balance, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadPositions(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) AppendTrade(ctx context.Context, t model.Trade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (id, market_id, user_id, delta_yes, delta_no, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.MarketID, t.UserID, t.DeltaYes, t.DeltaNo, t.Cost, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) ListTrades(ctx context.Context, marketID, userID string) ([]model.Trade, error) {
	query := "SELECT id, market_id, user_id, delta_yes, delta_no, cost, created_at FROM trades WHERE market_id = $1"
	args := []any{marketID}
	if userID != "" {
		query += " AND user_id = $2"
		args = append(args, userID)
	}
	query += " ORDER BY created_at, id"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.MarketID, &t.UserID, &t.DeltaYes, &t.DeltaNo, &t.Cost, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SumTradeCost(ctx context.Context, marketID, userID string) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(cost), 0) FROM trades WHERE market_id = $1"
	args := []any{marketID}
	if userID != "" {
		query += " AND user_id = $2"
		args = append(args, userID)
	}
	var sum decimal.Decimal
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum trade cost: %w", err)
	}
	return sum, nil
}
